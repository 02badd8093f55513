package worker

import (
	"testing"

	"github.com/LeonMotaung/f2gbetting/internal/model"
)

func TestNeedsResolution(t *testing.T) {
	nowMs := int64(1_700_000_000_000)

	cases := []struct {
		name  string
		round model.GameRound
		want  bool
	}{
		{
			name:  "expired active round",
			round: model.GameRound{Status: model.RoundStatusActive, IsSettled: 0, EndTime: nowMs - 1000},
			want:  true,
		},
		{
			// 进程在账本等待期间崩溃，重启后 resolving 期次必须被重新接管
			name:  "expired resolving round left by crash",
			round: model.GameRound{Status: model.RoundStatusResolving, IsSettled: 0, EndTime: nowMs - 60_000},
			want:  true,
		},
		{
			name:  "active round not yet expired",
			round: model.GameRound{Status: model.RoundStatusActive, IsSettled: 0, EndTime: nowMs + 1000},
			want:  false,
		},
		{
			name:  "completed round",
			round: model.GameRound{Status: model.RoundStatusCompleted, IsSettled: 1, EndTime: nowMs - 1000},
			want:  false,
		},
		{
			name:  "settled flag set regardless of status",
			round: model.GameRound{Status: model.RoundStatusResolving, IsSettled: 1, EndTime: nowMs - 1000},
			want:  false,
		},
		{
			name:  "deadline boundary counts as expired",
			round: model.GameRound{Status: model.RoundStatusActive, IsSettled: 0, EndTime: nowMs},
			want:  true,
		},
	}

	for _, c := range cases {
		if got := needsResolution(c.round, nowMs); got != c.want {
			t.Fatalf("%s: needsResolution = %v, want %v", c.name, got, c.want)
		}
	}
}
