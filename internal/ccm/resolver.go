package ccm

import (
	"context"
	"strings"
)

// ResolveProject maps a human-readable project name to a project.
// Exact matches win over substring matches; within each pass the service's
// return order decides. A failed listing resolves to nil, never an error;
// resolution failure must not sink a whole turn.
func (c *Client) ResolveProject(ctx context.Context, name string) *Project {
	ctx, cancel := context.WithTimeout(ctx, resolveTimeout)
	defer cancel()

	projects, err := c.ListProjects(ctx)
	if err != nil {
		c.logger.Debug("project resolution failed", "name", name, "error", err)
		return nil
	}

	for i := range projects {
		if projects[i].Name == name {
			return &projects[i]
		}
	}
	for i := range projects {
		if strings.Contains(projects[i].Name, name) {
			return &projects[i]
		}
	}
	return nil
}

// ResolveTask maps a task title to a task, optionally scoped to a project.
// Matching follows the same exact-then-substring precedence as projects.
func (c *Client) ResolveTask(ctx context.Context, name, projectID string) *Task {
	ctx, cancel := context.WithTimeout(ctx, resolveTimeout)
	defer cancel()

	tasks, err := c.ListTasks(ctx, projectID)
	if err != nil {
		c.logger.Debug("task resolution failed", "name", name, "error", err)
		return nil
	}

	for i := range tasks {
		if tasks[i].Title == name {
			return &tasks[i]
		}
	}
	for i := range tasks {
		if strings.Contains(tasks[i].Title, name) {
			return &tasks[i]
		}
	}
	return nil
}
