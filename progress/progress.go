// Package progress computes completion metrics over project task trees.
//
// Two policies are provided. ByCount counts every node in the tree once.
// ByValue sums the Value of leaf tasks only and measures completion against
// the project's own Value; values on non-leaf tasks are ignored and are not
// assumed to equal the sum of their descendants.
package progress

import (
	"math"

	"github.com/GoCodeAlone/sitetrack/project"
)

// Counts is the result of a count-based aggregation.
type Counts struct {
	Completed  int `json:"completed"`
	InProgress int `json:"in_progress"`
	Pending    int `json:"pending"`
	Total      int `json:"total"`
}

// Percent returns Completed/Total as a whole percentage, or 0 for an empty
// tree.
func (c Counts) Percent() int {
	return percent(float64(c.Completed), float64(c.Total))
}

// Values is the result of a value-based aggregation.
type Values struct {
	Completed    float64 `json:"completed"`
	InProgress   float64 `json:"in_progress"`
	Pending      float64 `json:"pending"`
	ProjectValue float64 `json:"project_value"`
}

// Percent returns Completed/ProjectValue as a whole percentage, or 0 when the
// project has no value.
func (v Values) Percent() int {
	return percent(v.Completed, v.ProjectValue)
}

// Summary bundles both aggregations of a project for display.
type Summary struct {
	Counts       Counts `json:"counts"`
	CountPercent int    `json:"count_percent"`
	Values       Values `json:"values"`
	ValuePercent int    `json:"value_percent"`
	LeafTasks    int    `json:"leaf_tasks"`
	NonLeafValue bool   `json:"non_leaf_value"` // some parent task carries its own value
}

// ByCount visits every task under tasks exactly once and tallies statuses.
func ByCount(tasks []project.Task) Counts {
	var c Counts
	visit(tasks, func(t project.Task) {
		c.Total++
		switch t.Status {
		case project.StatusCompleted:
			c.Completed++
		case project.StatusInProgress:
			c.InProgress++
		default:
			c.Pending++
		}
	})
	return c
}

// ByValue sums leaf task values of p into status buckets.
func ByValue(p project.Project) Values {
	v := Values{ProjectValue: p.Value}
	visit(p.Tasks, func(t project.Task) {
		if !t.IsLeaf() {
			return
		}
		switch t.Status {
		case project.StatusCompleted:
			v.Completed += t.Value
		case project.StatusInProgress:
			v.InProgress += t.Value
		default:
			v.Pending += t.Value
		}
	})
	return v
}

// Summarize computes both aggregations for p.
func Summarize(p project.Project) Summary {
	counts := ByCount(p.Tasks)
	values := ByValue(p)
	s := Summary{
		Counts:       counts,
		CountPercent: counts.Percent(),
		Values:       values,
		ValuePercent: values.Percent(),
	}
	visit(p.Tasks, func(t project.Task) {
		if t.IsLeaf() {
			s.LeafTasks++
		} else if t.Value != 0 {
			s.NonLeafValue = true
		}
	})
	return s
}

// visit walks the forest depth-first with an explicit stack.
func visit(tasks []project.Task, fn func(project.Task)) {
	stack := make([]*project.Task, 0, len(tasks))
	for i := range tasks {
		stack = append(stack, &tasks[i])
	}
	for len(stack) > 0 {
		t := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		fn(*t)
		for i := range t.SubTasks {
			stack = append(stack, &t.SubTasks[i])
		}
	}
}

func percent(part, whole float64) int {
	if whole <= 0 {
		return 0
	}
	return int(math.Round(part / whole * 100))
}
