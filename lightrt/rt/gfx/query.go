package gfx

type QueryStatus int

const (
	QueryUnset QueryStatus = iota
	QueryWaiting
	QueryOccluded
	QueryNotOccluded
	QueryError
)

func (s QueryStatus) String() string {
	switch s {
	case QueryUnset:
		return "unset"
	case QueryWaiting:
		return "waiting"
	case QueryOccluded:
		return "occluded"
	case QueryNotOccluded:
		return "not-occluded"
	}
	return "error"
}

// OcclusionQuery counts samples passing the depth test between Begin and
// End. Status reports the result of the last completed query; with block
// false it returns QueryWaiting while the result is in flight.
type OcclusionQuery interface {
	Begin()
	End()
	Status(block bool) QueryStatus
	Release()
}
