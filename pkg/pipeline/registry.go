package pipeline

import (
	"github.com/dominikbraun/graph"
	"github.com/pkg/errors"
)

const (
	edgeKind   = "kind"
	depEdge    = "dep"
	prereqEdge = "prereq"
)

// Registry holds every known task in a dependency graph. An edge goes from a task to the
// tasks waiting for it, either as a pre-task or as the producer of a prerequisite step.
type Registry struct {
	graph     graph.Graph[string, *Task]
	producers map[string]string
	order     map[string]int
	names     []string
}

func taskHash(t *Task) string {
	return t.Name
}

// NewRegistry registers tasks. Deps must name registered tasks and Prereqs steps produced by
// a registered task; dependencies forming a cycle are rejected.
func NewRegistry(tasks ...*Task) (*Registry, error) {
	reg := &Registry{
		graph:     graph.New(taskHash, graph.Directed(), graph.PreventCycles()),
		producers: make(map[string]string),
		order:     make(map[string]int),
	}

	for _, task := range tasks {
		err := reg.addTask(task)
		if err != nil {
			return nil, err
		}
	}

	for _, task := range tasks {
		for _, dep := range task.Deps {
			err := reg.link(dep, task.Name, depEdge)
			if err != nil {
				return nil, err
			}
		}

		for _, step := range task.Prereqs {
			producer, ok := reg.producers[step]
			if !ok {
				return nil, errors.Wrapf(ErrUnknownPrereq, "%s requires %s", task.Name, step)
			}

			err := reg.link(producer, task.Name, prereqEdge)
			if err != nil {
				return nil, err
			}
		}
	}

	return reg, nil
}

func (r *Registry) addTask(task *Task) error {
	if task == nil || task.Name == "" {
		return ErrTaskNameMustBeSet
	}

	if task.Run == nil {
		return errors.Wrap(ErrTaskFuncMustBeSet, task.Name)
	}

	err := r.graph.AddVertex(task)
	if errors.Is(err, graph.ErrVertexAlreadyExists) {
		return errors.Wrap(ErrDuplicateTask, task.Name)
	}

	if err != nil {
		return errors.Wrapf(err, "unable to add task %s", task.Name)
	}

	if task.Step != "" {
		if other, ok := r.producers[task.Step]; ok {
			return errors.Wrapf(ErrDuplicateStep, "%s and %s both produce %s", other, task.Name, task.Step)
		}

		r.producers[task.Step] = task.Name
	}

	r.order[task.Name] = len(r.names)
	r.names = append(r.names, task.Name)

	return nil
}

func (r *Registry) link(from, to, kind string) error {
	err := r.graph.AddEdge(from, to, graph.EdgeAttribute(edgeKind, kind))

	switch {
	case err == nil:
		return nil
	case errors.Is(err, graph.ErrVertexNotFound):
		return errors.Wrapf(ErrUnknownTask, "%s depends on %s", to, from)
	case errors.Is(err, graph.ErrEdgeCreatesCycle):
		return errors.Wrapf(ErrCycle, "%s -> %s", from, to)
	case errors.Is(err, graph.ErrEdgeAlreadyExists):
		// a task listed as a pre-task and as a prerequisite producer is a pre-task.
		if kind == prereqEdge {
			return nil
		}

		return errors.Wrap(r.graph.UpdateEdge(from, to, graph.EdgeAttribute(edgeKind, depEdge)), "unable to update edge")
	default:
		return errors.Wrapf(err, "unable to link %s to %s", from, to)
	}
}

// Task returns a registered task.
func (r *Registry) Task(name string) (*Task, error) {
	task, err := r.graph.Vertex(name)
	if err != nil {
		return nil, errors.Wrap(ErrUnknownTask, name)
	}

	return task, nil
}

// Producer returns the name of the task keeping the step record.
func (r *Registry) Producer(step string) (string, bool) {
	name, ok := r.producers[step]

	return name, ok
}

// Tasks returns every task in execution order.
func (r *Registry) Tasks() ([]*Task, error) {
	order, err := r.sorted()
	if err != nil {
		return nil, err
	}

	tasks := make([]*Task, 0, len(order))

	for _, name := range order {
		task, err := r.Task(name)
		if err != nil {
			return nil, err
		}

		tasks = append(tasks, task)
	}

	return tasks, nil
}

// Resolve returns, in execution order, the named tasks and the pre-tasks they need. With
// withPrereqs the producers of prerequisite steps are scheduled as well.
func (r *Registry) Resolve(names []string, withPrereqs bool) ([]*Task, error) {
	if len(names) == 0 {
		return nil, ErrNoTask
	}

	predecessors, err := r.graph.PredecessorMap()
	if err != nil {
		return nil, errors.Wrap(err, "unable to get predecessors")
	}

	needed := make(map[string]bool)

	var visit func(name string)
	visit = func(name string) {
		if needed[name] {
			return
		}

		needed[name] = true

		for parent, edge := range predecessors[name] {
			if withPrereqs || edge.Properties.Attributes[edgeKind] == depEdge {
				visit(parent)
			}
		}
	}

	for _, name := range names {
		if _, ok := predecessors[name]; !ok {
			return nil, errors.Wrap(ErrUnknownTask, name)
		}

		visit(name)
	}

	order, err := r.sorted()
	if err != nil {
		return nil, err
	}

	tasks := make([]*Task, 0, len(needed))

	for _, name := range order {
		if !needed[name] {
			continue
		}

		task, err := r.Task(name)
		if err != nil {
			return nil, err
		}

		tasks = append(tasks, task)
	}

	return tasks, nil
}

// parents returns the tasks the named task waits for, pre-tasks first.
func (r *Registry) parents(name string) []string {
	task, err := r.Task(name)
	if err != nil {
		return nil
	}

	seen := make(map[string]bool)
	parents := make([]string, 0, len(task.Deps)+len(task.Prereqs))

	add := func(parent string) {
		if seen[parent] {
			return
		}

		seen[parent] = true
		parents = append(parents, parent)
	}

	for _, dep := range task.Deps {
		add(dep)
	}

	for _, step := range task.Prereqs {
		add(r.producers[step])
	}

	return parents
}

// sorted orders tasks topologically, ties broken by registration order.
func (r *Registry) sorted() ([]string, error) {
	order, err := graph.StableTopologicalSort(r.graph, func(a, b string) bool {
		return r.order[a] < r.order[b]
	})
	if err != nil {
		return nil, errors.Wrap(err, "unable to sort tasks")
	}

	return order, nil
}
