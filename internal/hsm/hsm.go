package hsm

import "github.com/hasanaliduruk/2dWorkflowShipmentBot/internal/model"

var watchTransitions = map[model.WatchStatus]map[model.WatchStatus]bool{
	model.WatchStatusIdle: {
		model.WatchStatusResolving: true,
		model.WatchStatusRetired:   true,
	},
	model.WatchStatusResolving: {
		model.WatchStatusIdle:     true,
		model.WatchStatusReplaced: true,
		model.WatchStatusRetired:  true,
	},
	// Replaced and Retired are terminal for a key; the replacement entry
	// starts a fresh lifecycle under its new key.
	model.WatchStatusReplaced: {},
	model.WatchStatusRetired:  {},
}

func CanTransitionWatch(from model.WatchStatus, to model.WatchStatus) bool {
	if from == to {
		return true
	}
	return watchTransitions[from][to]
}
