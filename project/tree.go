package project

// locate returns the index path from the roots to the first task with the
// given id, in depth-first document order, or nil when no task matches.
// Matched nodes are not searched further.
func locate(tasks []Task, id string) []int {
	type entry struct {
		path []int
		task *Task
	}
	stack := make([]entry, 0, len(tasks))
	for i := len(tasks) - 1; i >= 0; i-- {
		stack = append(stack, entry{path: []int{i}, task: &tasks[i]})
	}
	for len(stack) > 0 {
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if e.task.ID == id {
			return e.path
		}
		for i := len(e.task.SubTasks) - 1; i >= 0; i-- {
			p := make([]int, len(e.path)+1)
			copy(p, e.path)
			p[len(e.path)] = i
			stack = append(stack, entry{path: p, task: &e.task.SubTasks[i]})
		}
	}
	return nil
}

// at returns the task addressed by a non-empty path produced by locate.
func at(tasks []Task, path []int) Task {
	t := tasks[path[0]]
	for _, i := range path[1:] {
		t = t.SubTasks[i]
	}
	return t
}

// rewrite returns a copy of tasks in which the node at path is replaced by
// fn(node). Only the slices along the path are re-created; the input is
// never written to.
func rewrite(tasks []Task, path []int, fn func(Task) Task) []Task {
	out := make([]Task, len(tasks))
	copy(out, tasks)
	i := path[0]
	if len(path) == 1 {
		out[i] = fn(out[i])
		return out
	}
	out[i].SubTasks = rewrite(out[i].SubTasks, path[1:], fn)
	return out
}

// appendTask returns a new slice holding tasks followed by t.
func appendTask(tasks []Task, t Task) []Task {
	out := make([]Task, len(tasks), len(tasks)+1)
	copy(out, tasks)
	return append(out, t)
}

// findTask locates a task by id anywhere under the given roots.
func findTask(tasks []Task, id string) (Task, bool) {
	path := locate(tasks, id)
	if path == nil {
		return Task{}, false
	}
	return at(tasks, path), true
}

// walk visits every task under the roots in depth-first order until fn
// returns false.
func walk(tasks []Task, fn func(Task) bool) {
	stack := make([]*Task, 0, len(tasks))
	for i := len(tasks) - 1; i >= 0; i-- {
		stack = append(stack, &tasks[i])
	}
	for len(stack) > 0 {
		t := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !fn(*t) {
			return
		}
		for i := len(t.SubTasks) - 1; i >= 0; i-- {
			stack = append(stack, &t.SubTasks[i])
		}
	}
}
