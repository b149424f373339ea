package session

import (
	"tutorloop/internal/agent"
)

// StateSnapshot is one observed thread state, reduced to what the
// lifecycle cares about. PracticeSession is already validated; mastery
// is already resolved to an absolute value.
type StateSnapshot struct {
	MessageCount    int
	NeedsSave       bool
	PracticeSession *PracticeSession
	CurrentStage    string
	Interrupted     bool
}

// Ready reports whether this snapshot satisfies the readiness predicate:
// the agent either flagged a save or has produced a session object.
func (s *StateSnapshot) Ready() bool {
	return s.NeedsSave || s.PracticeSession != nil
}

// SnapshotFromThreadState converts fetched thread state into a
// StateSnapshot. The embedded practice session is validated here; a
// malformed one fails the whole snapshot so the caller can log and skip
// the cycle. prevMastery is the last known absolute mastery, used to
// resolve delta-form reports.
func SnapshotFromThreadState(st *agent.ThreadState, prevMastery float64) (*StateSnapshot, error) {
	snap := &StateSnapshot{
		MessageCount: st.MessageCount(),
		NeedsSave:    st.Values.SessionNeedsSave,
		CurrentStage: st.Values.CurrentStage,
		Interrupted:  st.Interrupted(),
	}

	ps, err := DecodePracticeSession(st.Values.PracticeSession)
	if err != nil {
		return nil, err
	}
	snap.PracticeSession = ps

	// Resolve the dual-format mastery report once, here. When the agent
	// carries a delta alongside (or instead of) the absolute value, the
	// delta applied to the previous value wins.
	if ps != nil {
		reading := MasteryReading{Kind: MasteryAbsolute, Value: ps.OverallMastery}
		if st.Values.MasteryDelta != nil {
			reading = MasteryReading{Kind: MasteryDelta, Value: *st.Values.MasteryDelta}
		}
		ps.OverallMastery = reading.Resolve(prevMastery)
	}

	return snap, nil
}
