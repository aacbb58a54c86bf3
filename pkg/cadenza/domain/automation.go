package domain

import "time"

// AutomationStatus is the lifecycle state of an automation definition.
type AutomationStatus string

const (
	StatusDraft    AutomationStatus = "draft"    // editable, never triggered
	StatusActive   AutomationStatus = "active"   // eligible for triggering
	StatusInactive AutomationStatus = "inactive" // retired, never triggered
	StatusPaused   AutomationStatus = "paused"   // no new executions, running ones drain
)

// TriggerKind classifies what starts an automation.
type TriggerKind string

const (
	TriggerWelcome        TriggerKind = "welcome"
	TriggerAbandonedEvent TriggerKind = "abandoned_event"
	TriggerEngagementDrop TriggerKind = "engagement_drop"
	TriggerBehavioral     TriggerKind = "behavioral"
	TriggerGeneric        TriggerKind = "generic"
)

// Operator is the closed comparison set for conditions.
type Operator string

const (
	OpEq          Operator = "eq"
	OpNeq         Operator = "neq"
	OpGt          Operator = "gt"
	OpLt          Operator = "lt"
	OpContains    Operator = "contains"
	OpNotContains Operator = "not_contains"
	OpEmpty       Operator = "empty"
	OpNotEmpty    Operator = "not_empty"
)

// Condition compares one field of a recipient, or of the execution context
// when the field name carries the "context." prefix, against a literal value.
// Connective joins this condition to the NEXT one in the list; it defaults to
// AND when blank. The first condition in a list has no incoming connective.
type Condition struct {
	Field      string   `json:"field"      yaml:"field"      validate:"required"`
	Operator   Operator `json:"operator"   yaml:"operator"   validate:"required,oneof=eq neq gt lt contains not_contains empty not_empty"`
	Value      string   `json:"value"      yaml:"value"`
	Connective string   `json:"connective,omitempty" yaml:"connective,omitempty" validate:"omitempty,oneof=AND OR"`
}

// Trigger describes what starts a new execution of an automation.
type Trigger struct {
	Kind            TriggerKind `json:"kind"       yaml:"kind"       validate:"required,oneof=welcome abandoned_event engagement_drop behavioral generic"`
	Conditions      []Condition `json:"conditions" yaml:"conditions" validate:"dive"`
	MaxTriggerCount int         `json:"maxTriggerCount,omitempty" yaml:"maxTriggerCount,omitempty" validate:"gte=0"`
}

// ActionKind selects the executor for one step of an automation.
type ActionKind string

const (
	ActionSendMessage ActionKind = "send_message"
	ActionAddTag      ActionKind = "add_tag"
	ActionRemoveTag   ActionKind = "remove_tag"
	ActionUpdateField ActionKind = "update_field"
	ActionWait        ActionKind = "wait"
	ActionWebhook     ActionKind = "webhook"
	ActionHalt        ActionKind = "halt"
)

// Action is one step of an automation. Config fields are kind specific:
// Template/Subject for send_message, Tag for add_tag/remove_tag, Field+Value
// for update_field, WaitMinutes for wait, URL for webhook. DelayMinutes
// suspends the execution after this action completes, before the next action
// runs. Conditions gate whether the action executes at all; a false gate
// skips the action without failing the execution.
type Action struct {
	ID           string      `json:"id"           yaml:"id"           validate:"required"`
	Kind         ActionKind  `json:"kind"         yaml:"kind"         validate:"required,oneof=send_message add_tag remove_tag update_field wait webhook halt"`
	Template     string      `json:"template,omitempty"     yaml:"template,omitempty"     validate:"required_if=Kind send_message"`
	Subject      string      `json:"subject,omitempty"      yaml:"subject,omitempty"`
	Tag          string      `json:"tag,omitempty"          yaml:"tag,omitempty"          validate:"required_if=Kind add_tag,required_if=Kind remove_tag"`
	Field        string      `json:"field,omitempty"        yaml:"field,omitempty"        validate:"required_if=Kind update_field"`
	Value        string      `json:"value,omitempty"        yaml:"value,omitempty"`
	WaitMinutes  int         `json:"waitMinutes,omitempty"  yaml:"waitMinutes,omitempty"  validate:"gte=0,required_if=Kind wait"`
	URL          string      `json:"url,omitempty"          yaml:"url,omitempty"          validate:"required_if=Kind webhook,omitempty,url"`
	DelayMinutes int         `json:"delayMinutes,omitempty" yaml:"delayMinutes,omitempty" validate:"gte=0"`
	Conditions   []Condition `json:"conditions,omitempty"   yaml:"conditions,omitempty"   validate:"dive"`
}

// Policy carries the runtime settings of one automation.
type Policy struct {
	Timezone          string `json:"timezone,omitempty"          yaml:"timezone,omitempty"`
	QuietHoursStart   int    `json:"quietHoursStart,omitempty"   yaml:"quietHoursStart,omitempty"   validate:"gte=0,lte=23"`
	QuietHoursEnd     int    `json:"quietHoursEnd,omitempty"     yaml:"quietHoursEnd,omitempty"     validate:"gte=0,lte=23"`
	MaxMessagesPerDay int    `json:"maxMessagesPerDay,omitempty" yaml:"maxMessagesPerDay,omitempty" validate:"gte=0"`
	AllowConcurrent   bool   `json:"allowConcurrent,omitempty"   yaml:"allowConcurrent,omitempty"`
}

// QuietHoursAt reports whether t falls inside the quiet-hours window, in the
// policy's timezone. A window where start == end is disabled. Windows may
// wrap midnight (e.g. 21 to 8).
func (p Policy) QuietHoursAt(t time.Time) bool {
	if p.QuietHoursStart == p.QuietHoursEnd {
		return false
	}
	loc := time.UTC
	if p.Timezone != "" {
		if l, err := time.LoadLocation(p.Timezone); err == nil {
			loc = l
		}
	}
	h := t.In(loc).Hour()
	if p.QuietHoursStart < p.QuietHoursEnd {
		return h >= p.QuietHoursStart && h < p.QuietHoursEnd
	}
	return h >= p.QuietHoursStart || h < p.QuietHoursEnd
}

// QuietHoursEndAfter returns the first instant at or after t outside the
// quiet-hours window.
func (p Policy) QuietHoursEndAfter(t time.Time) time.Time {
	loc := time.UTC
	if p.Timezone != "" {
		if l, err := time.LoadLocation(p.Timezone); err == nil {
			loc = l
		}
	}
	local := t.In(loc)
	end := time.Date(local.Year(), local.Month(), local.Day(), p.QuietHoursEnd, 0, 0, 0, loc)
	if !end.After(local) {
		end = end.Add(24 * time.Hour)
	}
	return end
}

// Automation is one immutable version of a workflow definition: a trigger, an
// ordered action list and runtime policy. Editing an automation writes a new
// version; executions pin the version they started on.
type Automation struct {
	ID          string           `json:"id"          yaml:"id"`
	Version     int              `json:"version"     yaml:"-"`
	Name        string           `json:"name"        yaml:"name"   validate:"required,min=3"`
	Description string           `json:"description,omitempty" yaml:"description,omitempty"`
	Status      AutomationStatus `json:"status"      yaml:"status" validate:"required,oneof=draft active inactive paused"`
	Trigger     Trigger          `json:"trigger"     yaml:"trigger"`
	Actions     []Action         `json:"actions"     yaml:"actions" validate:"min=1,dive"`
	Policy      Policy           `json:"policy"      yaml:"policy"`
	Created     time.Time        `json:"created"     yaml:"-"`
	Updated     time.Time        `json:"updated"     yaml:"-"`

	// Counters maintained by the stats aggregator. Observability only,
	// eventually consistent with the execution store.
	Triggered            int64   `json:"triggered"            yaml:"-"`
	Completed            int64   `json:"completed"            yaml:"-"`
	AvgCompletionMinutes float64 `json:"avgCompletionMinutes" yaml:"-"`
}

// ConversionRate is completed over triggered, 0 when nothing triggered yet.
func (a *Automation) ConversionRate() float64 {
	if a.Triggered == 0 {
		return 0
	}
	return float64(a.Completed) / float64(a.Triggered)
}
