package uniform

import (
	"fmt"
	"strings"

	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/math"
	"github.com/spaghettifunk/framegraph/engine/renderer/components"
	"github.com/spaghettifunk/framegraph/engine/renderer/gpu"
)

// SceneDataProp is a per frame value shared by every draw of a pass.
type SceneDataProp int

const (
	SceneCameraPosition SceneDataProp = iota
	SceneCameraViewProj
	SceneCameraViewPort
	SceneLightDirection
	SceneLightColor
	SceneLightAmbientColor
)

var scenePropNames = map[SceneDataProp]string{
	SceneCameraPosition:    "camera_position",
	SceneCameraViewProj:    "camera_view_proj",
	SceneCameraViewPort:    "camera_view_port",
	SceneLightDirection:    "light_direction",
	SceneLightColor:        "light_color",
	SceneLightAmbientColor: "light_ambient_color",
}

func (p SceneDataProp) String() string {
	return scenePropNames[p]
}

func ParseSceneDataProp(s string) (SceneDataProp, error) {
	for p, name := range scenePropNames {
		if strings.EqualFold(name, s) {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown scene data %q: %w", s, core.ErrInvalidData)
}

var ambientColor = math.NewVec4(0.1, 0.1, 0.1, 1)

// SceneData is everything a pass may need to fill its scene uniform.
type SceneData struct {
	Camera          *components.Camera
	CameraTransform math.Transform
	Light           *components.Light
	LightTransform  math.Transform
	Extent          gpu.Extent2D
}

type SceneDataLayout struct {
	props   []SceneDataProp
	uniform *UniformLayout
}

func NewSceneDataLayout(props ...SceneDataProp) *SceneDataLayout {
	b := NewUniformLayoutBuilder()
	for _, p := range props {
		switch p {
		case SceneCameraPosition:
			b.Prop("camera_position", PropVec3F)
		case SceneCameraViewProj:
			b.Prop("view_proj", PropMat4F)
		case SceneCameraViewPort:
			b.Prop("screen_size", PropVec2F)
		case SceneLightDirection:
			b.Prop("light_direction", PropVec3F)
		case SceneLightColor:
			b.Prop("light_color", PropVec4F)
		case SceneLightAmbientColor:
			b.Prop("ambient_color", PropVec4F)
		}
	}
	return &SceneDataLayout{props: props, uniform: b.Build()}
}

func (l *SceneDataLayout) Uniform() *UniformLayout {
	return l.uniform
}

func (l *SceneDataLayout) Props() []SceneDataProp {
	return l.props
}

func (l *SceneDataLayout) Data(scene SceneData) []byte {
	out := make([]byte, 0, l.uniform.Size())
	l.CopyData(scene, &out)
	return out
}

// CopyData encodes scene into out. A missing camera gives an identity
// projection, a missing light a black one.
func (l *SceneDataLayout) CopyData(scene SceneData, out *[]byte) {
	values := make([]UniformPropData, 0, len(l.props))
	for _, p := range l.props {
		switch p {
		case SceneCameraPosition:
			values = append(values, Vec3FData(scene.CameraTransform.Translation))
		case SceneCameraViewProj:
			viewProj := math.NewMat4Identity()
			if scene.Camera != nil {
				viewProj = scene.Camera.ViewProj(scene.CameraTransform.Translation)
			}
			values = append(values, Mat4FData(viewProj))
		case SceneCameraViewPort:
			values = append(values, Vec2FData(math.NewVec2(float32(scene.Extent.Width), float32(scene.Extent.Height))))
		case SceneLightDirection:
			values = append(values, Vec3FData(scene.LightTransform.Translation.Normalized()))
		case SceneLightColor:
			var colour math.Vec4
			if scene.Light != nil {
				colour = scene.Light.Colour
			}
			values = append(values, Vec4FData(colour))
		case SceneLightAmbientColor:
			values = append(values, Vec4FData(ambientColor))
		}
	}
	l.uniform.CopyData(values, out)
}
