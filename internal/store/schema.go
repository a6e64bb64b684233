package store

import (
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

const (
	runsTableName   = "analysis_runs"
	usersTableName  = "user_metrics"
	eventsTableName = "llm_request_events"
)

var (
	// runsColumns holds the columns for the "analysis_runs" table.
	runsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString},
		{Name: "sequence", Type: field.TypeInt64, Unique: true},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "events_path", Type: field.TypeString},
		{Name: "dictionary_path", Type: field.TypeString},
		{Name: "timeout_seconds", Type: field.TypeFloat64},
		{Name: "total_users", Type: field.TypeInt},
		{Name: "total_page_views", Type: field.TypeInt},
		{Name: "mean_completion_rate", Type: field.TypeFloat64},
		{Name: "load", Type: field.TypeJSON},
		{Name: "coverage", Type: field.TypeJSON},
		{Name: "cohort", Type: field.TypeJSON},
		{Name: "insights", Type: field.TypeJSON, Nullable: true},
	}
	runsTable = &schema.Table{
		Name:       runsTableName,
		Columns:    runsColumns,
		PrimaryKey: []*schema.Column{runsColumns[0]},
	}

	// usersColumns holds the columns for the "user_metrics" table.
	usersColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "run_id", Type: field.TypeString},
		{Name: "user_id", Type: field.TypeString},
		{Name: "total_dwell_seconds", Type: field.TypeFloat64},
		{Name: "completion_rate", Type: field.TypeFloat64},
		{Name: "data", Type: field.TypeJSON},
	}
	usersTable = &schema.Table{
		Name:       usersTableName,
		Columns:    usersColumns,
		PrimaryKey: []*schema.Column{usersColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "user_metrics_analysis_runs_users",
				Columns:    []*schema.Column{usersColumns[1]},
				RefColumns: []*schema.Column{runsColumns[0]},
				OnDelete:   schema.Cascade,
			},
		},
		Indexes: []*schema.Index{
			{
				Name:    "usermetrics_run_id_user_id",
				Unique:  true,
				Columns: []*schema.Column{usersColumns[1], usersColumns[2]},
			},
		},
	}

	// eventsColumns holds the columns for the "llm_request_events" table.
	eventsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "timestamp", Type: field.TypeTime},
		{Name: "provider", Type: field.TypeString},
		{Name: "model", Type: field.TypeString},
		{Name: "purpose", Type: field.TypeString},
		{Name: "input_tokens", Type: field.TypeInt},
		{Name: "output_tokens", Type: field.TypeInt},
		{Name: "latency_ms", Type: field.TypeInt64},
		{Name: "success", Type: field.TypeBool},
		{Name: "error_message", Type: field.TypeString, Default: ""},
		{Name: "request_body", Type: field.TypeString, Size: 2147483647, Default: ""},
		{Name: "response_body", Type: field.TypeString, Size: 2147483647, Default: ""},
	}
	eventsTable = &schema.Table{
		Name:       eventsTableName,
		Columns:    eventsColumns,
		PrimaryKey: []*schema.Column{eventsColumns[0]},
		Indexes: []*schema.Index{
			{
				Name:    "llmrequestevent_purpose",
				Columns: []*schema.Column{eventsColumns[4]},
			},
		},
	}

	tables = []*schema.Table{runsTable, usersTable, eventsTable}
)

func init() {
	usersTable.ForeignKeys[0].RefTable = runsTable
}
