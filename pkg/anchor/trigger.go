package anchor

// Trigger identifies why a recomputation was requested.
type Trigger int

const (
	TriggerManual Trigger = iota
	TriggerMount
	TriggerItems
	TriggerSelection
	TriggerGap
	TriggerResize
	TriggerScroll
	TriggerSettled
	TriggerElementResize
	TriggerElementAttached
)

var triggerNames = [...]string{
	TriggerManual:          "manual",
	TriggerMount:           "mount",
	TriggerItems:           "items",
	TriggerSelection:       "selection",
	TriggerGap:             "gap",
	TriggerResize:          "resize",
	TriggerScroll:          "scroll",
	TriggerSettled:         "settled",
	TriggerElementResize:   "element-resize",
	TriggerElementAttached: "element-attached",
}

func (t Trigger) String() string {
	if t < 0 || int(t) >= len(triggerNames) {
		return "unknown"
	}
	return triggerNames[t]
}
