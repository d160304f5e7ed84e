package round

// Phase 回合阶段，按顺序循环，无终止状态
type Phase int32

const (
	PhaseLobby Phase = iota
	PhaseVoting
	PhaseBuild
	PhaseRun
	PhaseResults
	PhaseCleanup
)

func (p Phase) String() string {
	switch p {
	case PhaseLobby:
		return "lobby"
	case PhaseVoting:
		return "voting"
	case PhaseBuild:
		return "build"
	case PhaseRun:
		return "run"
	case PhaseResults:
		return "results"
	case PhaseCleanup:
		return "cleanup"
	default:
		return "unknown"
	}
}
