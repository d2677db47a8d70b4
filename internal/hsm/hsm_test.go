package hsm

import (
	"testing"

	"github.com/hasanaliduruk/2dWorkflowShipmentBot/internal/model"
)

func TestWatchTransitions(t *testing.T) {
	cases := []struct {
		from model.WatchStatus
		to   model.WatchStatus
		want bool
	}{
		{model.WatchStatusIdle, model.WatchStatusResolving, true},
		{model.WatchStatusIdle, model.WatchStatusRetired, true},
		{model.WatchStatusIdle, model.WatchStatusReplaced, false},
		{model.WatchStatusResolving, model.WatchStatusIdle, true},
		{model.WatchStatusResolving, model.WatchStatusReplaced, true},
		{model.WatchStatusResolving, model.WatchStatusRetired, true},
		{model.WatchStatusReplaced, model.WatchStatusResolving, false},
		{model.WatchStatusRetired, model.WatchStatusIdle, false},
		{model.WatchStatusIdle, model.WatchStatusIdle, true},
	}
	for _, tc := range cases {
		if got := CanTransitionWatch(tc.from, tc.to); got != tc.want {
			t.Fatalf("transition %s -> %s: got %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}
