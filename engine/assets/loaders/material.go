package loaders

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/math"
)

// MaterialConfig is the content of a .amt file. Pipeline names an entry of
// the pipelines section of the graph description.
type MaterialConfig struct {
	Name          string
	Pipeline      string
	DiffuseColour math.Vec4
	DiffuseMap    string
	Blending      bool
}

type MaterialLoader struct{}

func (ml *MaterialLoader) Load(path string) (interface{}, error) {
	return LoadMaterial(path)
}

func LoadMaterial(path string) (*MaterialConfig, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	cfg, err := ParseMaterial(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// ParseMaterial reads key = value lines, # starts a comment.
func ParseMaterial(r io.Reader) (*MaterialConfig, error) {
	scanner := bufio.NewScanner(r)
	cfg := &MaterialConfig{DiffuseColour: math.NewVec4(1, 1, 1, 1)}

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "#") || line == "" {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			core.LogWarn("skipping invalid material line: %s", line)
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		switch key {
		case "name":
			cfg.Name = value
		case "pipeline":
			cfg.Pipeline = value
		case "diffuse_colour":
			colour, err := parseVec4(value)
			if err != nil {
				return nil, err
			}
			cfg.DiffuseColour = colour
		case "diffuse_map_name":
			cfg.DiffuseMap = value
		case "blending":
			b, err := strconv.ParseBool(value)
			if err != nil {
				return nil, fmt.Errorf("invalid blending value %q: %w", value, core.ErrInvalidData)
			}
			cfg.Blending = b
		default:
			core.LogWarn("unknown material key '%s', skipping", key)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if err := validateMaterial(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseVec4(value string) (math.Vec4, error) {
	fields := strings.Fields(value)
	if len(fields) != 4 {
		return math.Vec4{}, fmt.Errorf("expected 4 values, got %q: %w", value, core.ErrInvalidData)
	}
	var out [4]float32
	for i, v := range fields {
		f, err := strconv.ParseFloat(v, 32)
		if err != nil {
			return math.Vec4{}, fmt.Errorf("invalid colour value %q: %w", v, core.ErrInvalidData)
		}
		out[i] = float32(f)
	}
	return math.NewVec4(out[0], out[1], out[2], out[3]), nil
}

func validateMaterial(cfg *MaterialConfig) error {
	if cfg.Name == "" {
		return fmt.Errorf("material name is required: %w", core.ErrInvalidData)
	}
	if cfg.Pipeline == "" {
		return fmt.Errorf("material %s has no pipeline: %w", cfg.Name, core.ErrInvalidData)
	}
	c := cfg.DiffuseColour
	if !inRange(c.X) || !inRange(c.Y) || !inRange(c.Z) || !inRange(c.W) {
		return fmt.Errorf("material %s: diffuse_colour must be within [0, 1]: %w", cfg.Name, core.ErrInvalidData)
	}
	return nil
}

func inRange(value float32) bool {
	return value >= 0.0 && value <= 1.0
}
