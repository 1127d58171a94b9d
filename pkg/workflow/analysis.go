package workflow

import (
	"strings"

	"github.com/taskmem-labs/taskmem-go/pkg/storage"
)

// Analysis is the derived workflow analysis for a proposed target status.
type Analysis struct {
	// Stage names the workflow stage the target status maps to.
	Stage string `json:"workflow_stage"`

	// CompletionPercentage is the fixed weight of the target status.
	CompletionPercentage int `json:"completion_percentage"`

	// NextActions are the standard follow-ups for the target status.
	NextActions []string `json:"next_suggested_actions,omitempty"`

	// PotentialBlockers are keyword-triggered risks with mitigations.
	PotentialBlockers []Blocker `json:"potential_blockers,omitempty"`
}

// Blocker is a keyword-triggered risk with mitigation text.
type Blocker struct {
	Keyword    string `json:"keyword"`
	Risk       string `json:"risk"`
	Mitigation string `json:"mitigation"`
}

var stageByStatus = map[storage.Status]string{
	storage.StatusTodo:       "planning",
	storage.StatusInProgress: "execution",
	storage.StatusBlocked:    "resolution_needed",
	storage.StatusDone:       "completed",
}

var completionByStatus = map[storage.Status]int{
	storage.StatusTodo:       0,
	storage.StatusBlocked:    25,
	storage.StatusInProgress: 50,
	storage.StatusDone:       100,
}

var nextActionsByStatus = map[storage.Status][]string{
	storage.StatusTodo: {
		"break the task into subtasks",
		"schedule a first working session",
	},
	storage.StatusInProgress: {
		"record progress notes as you go",
		"update the status when the work lands",
	},
	storage.StatusBlocked: {
		"document what exactly is blocking",
		"identify an owner for resolving the blocker",
	},
	storage.StatusDone: {
		"capture completion evidence",
		"review whether follow-up tasks are needed",
	},
}

var blockerTriggers = []Blocker{
	{
		Keyword:    "api",
		Risk:       "depends on an external API",
		Mitigation: "verify API availability and rate limits up front",
	},
	{
		Keyword:    "approval",
		Risk:       "requires a sign-off",
		Mitigation: "request the approval early to avoid waiting at the end",
	},
	{
		Keyword:    "migration",
		Risk:       "involves a data migration",
		Mitigation: "take a backup and rehearse the migration first",
	},
	{
		Keyword:    "deploy",
		Risk:       "requires a deployment",
		Mitigation: "schedule the deployment window in advance",
	},
	{
		Keyword:    "legacy",
		Risk:       "touches legacy code",
		Mitigation: "add characterization tests before changing behavior",
	},
}

// analyze derives the workflow analysis for the target status.
func analyze(task *storage.Task, newStatus storage.Status) Analysis {
	analysis := Analysis{
		Stage:                stageByStatus[newStatus],
		CompletionPercentage: completionByStatus[newStatus],
		NextActions:          append([]string(nil), nextActionsByStatus[newStatus]...),
	}

	text := strings.ToLower(task.Title + " " + task.Description)
	for _, b := range blockerTriggers {
		if strings.Contains(text, b.Keyword) {
			analysis.PotentialBlockers = append(analysis.PotentialBlockers, b)
		}
	}

	return analysis
}
