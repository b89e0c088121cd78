package metadata

import "testing"

func TestGetPadding(t *testing.T) {
	cases := []struct {
		size, align, want uint64
	}{
		{64, 16, 0},
		{48, 16, 0},
		{8, 16, 8},
		{12, 16, 4},
		{4, 0, 0},
	}
	for _, c := range cases {
		if got := GetPadding(c.size, c.align); got != c.want {
			t.Errorf("GetPadding(%d, %d) = %d, want %d", c.size, c.align, got, c.want)
		}
	}
	if got := GetAligned(1000, 256); got != 1024 {
		t.Errorf("GetAligned(1000, 256) = %d", got)
	}
}

func TestStatsCountGeometryOncePerPass(t *testing.T) {
	stats := NewRenderStats()
	model := NewModelID()
	forward, depth := NewPassID(), NewPassID()

	for i := 0; i < 3; i++ {
		stats.AddObject(&RenderObject{Model: model, Pass: forward}, 24, 36, 1)
	}
	stats.AddObject(&RenderObject{Model: model, Pass: depth}, 24, 36, 1)

	fs := stats.PassStats[forward]
	if fs.Instances != 3 || fs.Models != 1 || fs.Vertices != 24 || fs.Indices != 36 {
		t.Errorf("unexpected forward stats %+v", *fs)
	}
	if ds := stats.PassStats[depth]; ds.Models != 1 {
		t.Errorf("depth pass should count the model, got %+v", *ds)
	}

	stats.AddBind(forward, BindPipeline)
	stats.AddBind(forward, BindIndex)
	stats.AddBind(forward, BindVertex)
	stats.AddDraw(forward)
	if stats.Binds != 3 || stats.PipelineBinds != 1 || stats.IndexBinds != 1 || stats.VertexBinds != 1 || stats.Draws != 1 {
		t.Errorf("unexpected counters %+v", stats)
	}

	stats.Reset()
	if stats.Draws != 0 || len(stats.PassStats) != 0 {
		t.Errorf("reset left counters %+v", stats)
	}
}

func TestIDCompare(t *testing.T) {
	a := ModelID{0, 1}
	b := ModelID{0, 2}
	if a.Compare(b) >= 0 || b.Compare(a) <= 0 || a.Compare(a) != 0 {
		t.Error("unexpected ordering")
	}
}
