package command

import "strings"

// Action is a command action the client knows how to present.
type Action string

const (
	ActionLook       Action = "look"
	ActionSay        Action = "say"
	ActionPose       Action = "pose"
	ActionEmit       Action = "emit"
	ActionWhisper    Action = "whisper"
	ActionPage       Action = "page"
	ActionTravel     Action = "travel"
	ActionGet        Action = "get"
	ActionGive       Action = "give"
	ActionDrop       Action = "drop"
	ActionDig        Action = "dig"
	ActionSceneStart Action = "scene_start"
	ActionSceneEnd   Action = "scene_end"
	ActionRoulette   Action = "roulette"
)

// Widget is the input surface used to collect a command's parameters.
type Widget string

const (
	WidgetNone   Widget = "none"
	WidgetText   Widget = "text"
	WidgetTarget Widget = "target"
	WidgetForm   Widget = "form"
)

// Affordance is how an action is offered to the player.
type Affordance struct {
	Action Action
	Icon   string
	Widget Widget
	Known  bool
}

var affordances = map[Action]Affordance{
	ActionLook:       {Icon: "eye", Widget: WidgetTarget},
	ActionSay:        {Icon: "message-circle", Widget: WidgetText},
	ActionPose:       {Icon: "feather", Widget: WidgetText},
	ActionEmit:       {Icon: "megaphone", Widget: WidgetText},
	ActionWhisper:    {Icon: "ear", Widget: WidgetForm},
	ActionPage:       {Icon: "send", Widget: WidgetForm},
	ActionTravel:     {Icon: "door-open", Widget: WidgetTarget},
	ActionGet:        {Icon: "hand", Widget: WidgetTarget},
	ActionGive:       {Icon: "gift", Widget: WidgetForm},
	ActionDrop:       {Icon: "arrow-down", Widget: WidgetTarget},
	ActionDig:        {Icon: "shovel", Widget: WidgetForm},
	ActionSceneStart: {Icon: "clapperboard", Widget: WidgetForm},
	ActionSceneEnd:   {Icon: "square", Widget: WidgetNone},
	ActionRoulette:   {Icon: "dices", Widget: WidgetNone},
}

var fallback = Affordance{Icon: "terminal", Widget: WidgetForm}

// LookupAction maps a server action name to its affordance. Unknown actions
// get the generic form with Known=false.
func LookupAction(action string) Affordance {
	a := Action(strings.ToLower(strings.TrimSpace(action)))
	if aff, ok := affordances[a]; ok {
		aff.Action = a
		aff.Known = true
		return aff
	}
	out := fallback
	out.Action = a
	return out
}

// IconFor prefers a server-provided icon and falls back to the action table.
func IconFor(action, serverIcon string) string {
	if s := strings.TrimSpace(serverIcon); s != "" {
		return s
	}
	return LookupAction(action).Icon
}
