package ai

// toolDeclarations is the fixed tool surface offered to the model in
// tool-calling mode. Names match the executor's action names; there are no
// delete tools because the CCM service has no delete endpoints.
var toolDeclarations = []Tool{
	{
		Name:        "list_projects",
		Description: "List all projects on the CCM service.",
		InputSchema: InputSchema{
			Type:       "object",
			Properties: map[string]Property{},
		},
	},
	{
		Name:        "list_tasks",
		Description: "List tasks on the CCM service, optionally filtered to one project.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"projectId": {Type: "string", Description: "Project id to filter by"},
			},
		},
	},
	{
		Name:        "create_task",
		Description: "Create a task in a project.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"title":     {Type: "string", Description: "Task title"},
				"projectId": {Type: "string", Description: "Project id the task belongs to"},
				"branch":    {Type: "string", Description: "Git branch for the task"},
			},
			Required: []string{"title", "projectId", "branch"},
		},
	},
	{
		Name:        "start_task",
		Description: "Start a task by id.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"taskId": {Type: "string", Description: "Task id to start"},
				"branch": {Type: "string", Description: "Optional branch override"},
			},
			Required: []string{"taskId"},
		},
	},
	{
		Name:        "stop_task",
		Description: "Stop a running task by id.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"taskId": {Type: "string", Description: "Task id to stop"},
			},
			Required: []string{"taskId"},
		},
	},
}
