package metadata

import "time"

type PassStats struct {
	Vertices  uint32
	Indices   uint32
	Models    uint32
	Textures  uint32
	Instances uint32
	Draws     uint32
	Binds     uint32
}

// RenderStats collects counters for the frame being recorded.
type RenderStats struct {
	Draws         uint32
	Binds         uint32
	PipelineBinds uint32
	IndexBinds    uint32
	VertexBinds   uint32
	ResourceBinds uint32

	CPUDrawTime time.Duration
	UpdateTime  time.Duration

	PassStats map[PassID]*PassStats
	models    map[MeshKey]struct{}
}

func NewRenderStats() *RenderStats {
	return &RenderStats{
		PassStats: map[PassID]*PassStats{},
		models:    map[MeshKey]struct{}{},
	}
}

// Reset clears the per frame counters. Timings are kept so they can be
// displayed until the next measurement.
func (s *RenderStats) Reset() {
	s.Draws = 0
	s.Binds = 0
	s.PipelineBinds = 0
	s.IndexBinds = 0
	s.VertexBinds = 0
	s.ResourceBinds = 0
	s.PassStats = map[PassID]*PassStats{}
	s.models = map[MeshKey]struct{}{}
}

// Pass returns the stats of a pass, creating them on first use.
func (s *RenderStats) Pass(id PassID) *PassStats {
	if s.PassStats == nil {
		s.PassStats = map[PassID]*PassStats{}
	}
	ps, ok := s.PassStats[id]
	if !ok {
		ps = &PassStats{}
		s.PassStats[id] = ps
	}
	return ps
}

// AddObject counts one instance of obj. Geometry of a model is counted once
// per pass no matter how many instances are drawn.
func (s *RenderStats) AddObject(obj *RenderObject, vertices, indices, textures uint32) {
	if s == nil {
		return
	}
	if s.models == nil {
		s.models = map[MeshKey]struct{}{}
	}
	ps := s.Pass(obj.Pass)
	ps.Instances++

	key := MeshKey{Model: obj.Model, Pass: obj.Pass}
	if _, ok := s.models[key]; ok {
		return
	}
	s.models[key] = struct{}{}
	ps.Models++
	ps.Vertices += vertices
	ps.Indices += indices
	ps.Textures += textures
}

func (s *RenderStats) AddDraw(pass PassID) {
	if s == nil {
		return
	}
	s.Draws++
	s.Pass(pass).Draws++
}

type BindKind int

const (
	BindPipeline BindKind = iota
	BindIndex
	BindVertex
	BindResource
)

func (s *RenderStats) AddBind(pass PassID, kind BindKind) {
	if s == nil {
		return
	}
	s.Binds++
	s.Pass(pass).Binds++
	switch kind {
	case BindPipeline:
		s.PipelineBinds++
	case BindIndex:
		s.IndexBinds++
	case BindVertex:
		s.VertexBinds++
	case BindResource:
		s.ResourceBinds++
	}
}
