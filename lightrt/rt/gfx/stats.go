package gfx

type Statistics struct {
	DrawCalls           int
	PolyCount           int
	RenderTargetChanges int
}

func (s Statistics) Sub(o Statistics) Statistics {
	return Statistics{
		DrawCalls:           s.DrawCalls - o.DrawCalls,
		PolyCount:           s.PolyCount - o.PolyCount,
		RenderTargetChanges: s.RenderTargetChanges - o.RenderTargetChanges,
	}
}
