package character

type LoadState int

const (
	Idle LoadState = iota
	CheckingLibraries
	Initializing
	AssetsLoading
	Ready
	Failed
	Disposed
)

func (s LoadState) String() string {
	switch s {
	case Idle:
		return "idle"
	case CheckingLibraries:
		return "checking_libraries"
	case Initializing:
		return "initializing"
	case AssetsLoading:
		return "assets_loading"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	case Disposed:
		return "disposed"
	default:
		return "unknown"
	}
}
