package types

// TaskSchema is the on-disk declaration of the dataset's tasks.
// When present it replaces header-convention discovery.
type TaskSchema struct {
	// IDColumn is the compound identifier column (default "compound_id")
	IDColumn string `json:"id_column,omitempty" yaml:"id_column,omitempty"`

	// Tasks lists the declared tasks in output order within each kind
	Tasks []Task `json:"tasks" yaml:"tasks"`
}

// TaskSet builds the indexed descriptor set for the schema.
func (s TaskSchema) TaskSet() (*TaskSet, error) {
	return NewTaskSet(s.Tasks)
}
