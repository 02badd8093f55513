package state

import "testing"

func TestNextStateValid(t *testing.T) {
	cases := []struct {
		cur, evt, want string
	}{
		{StateActive, EvtExpire, StateResolving},
		{StateResolving, EvtSettle, StateCompleted},
		{StateResolving, EvtReopen, StateActive},
	}
	for _, c := range cases {
		got, err := NextState(c.cur, c.evt)
		if err != nil {
			t.Fatalf("NextState(%s, %s) err: %v", c.cur, c.evt, err)
		}
		if got != c.want {
			t.Fatalf("NextState(%s, %s) = %s, want %s", c.cur, c.evt, got, c.want)
		}
	}
}

func TestNextStateInvalid(t *testing.T) {
	cases := []struct {
		cur, evt string
	}{
		{StateActive, EvtSettle},
		{StateActive, EvtReopen},
		{StateResolving, EvtExpire},
		{StateCompleted, EvtExpire},
		{StateCompleted, EvtSettle},
		{StateCompleted, EvtReopen},
		{"", EvtExpire},
		{StateActive, "no_such_event"},
	}
	for _, c := range cases {
		got, err := NextState(c.cur, c.evt)
		if err == nil {
			t.Fatalf("NextState(%s, %s) expected error", c.cur, c.evt)
		}
		// 非法转换保持原状态
		if got != c.cur {
			t.Fatalf("NextState(%s, %s) changed state to %s on error", c.cur, c.evt, got)
		}
	}
}
