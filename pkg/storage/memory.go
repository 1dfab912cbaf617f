package storage

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/absmach/siteguard/pkg/errors"
	"github.com/absmach/siteguard/pkg/fl"
)

// memoryStore keeps every entity behind one lock so round advancement can
// touch the experiment and its models atomically.
type memoryStore struct {
	sync.Mutex

	experiments   map[string]fl.Experiment
	participants  map[string]fl.Participant
	principals    map[string]string
	models        map[string]map[uint64]fl.GlobalModel
	contributions map[string][]fl.Contribution
	localModels   map[string]fl.LocalModel
}

func NewMemoryRepositories() *Repositories {
	s := &memoryStore{
		experiments:   make(map[string]fl.Experiment),
		participants:  make(map[string]fl.Participant),
		principals:    make(map[string]string),
		models:        make(map[string]map[uint64]fl.GlobalModel),
		contributions: make(map[string][]fl.Contribution),
		localModels:   make(map[string]fl.LocalModel),
	}

	return &Repositories{
		Experiments:   &memoryExperiments{s},
		Participants:  &memoryParticipants{s},
		Models:        &memoryModels{s},
		Contributions: &memoryContributions{s},
		LocalModels:   &memoryLocalModels{s},
	}
}

func principalKey(experimentID, principalID string) string {
	return experimentID + "/" + principalID
}

func localModelKey(experimentID, participantID string, round uint64) string {
	return experimentID + "/" + participantID + "/" + strconv.FormatUint(round, 10)
}

func cloneExperiment(e fl.Experiment) fl.Experiment {
	e.Params = maps.Clone(e.Params)

	return e
}

func page[T any](items []T, offset, limit uint64) []T {
	total := uint64(len(items))
	if offset >= total {
		return []T{}
	}
	end := min(offset+limit, total)

	return slices.Clone(items[offset:end])
}

type memoryExperiments struct {
	*memoryStore
}

func (r *memoryExperiments) Create(_ context.Context, e fl.Experiment, initial fl.GlobalModel) error {
	if e.ID == "" {
		return errors.ErrEmptyKey
	}

	r.Lock()
	defer r.Unlock()

	if _, ok := r.experiments[e.ID]; ok {
		return errors.ErrEntityExists
	}
	r.experiments[e.ID] = cloneExperiment(e)
	r.models[e.ID] = map[uint64]fl.GlobalModel{initial.Round: initial}

	return nil
}

func (r *memoryExperiments) Get(_ context.Context, id string) (fl.Experiment, error) {
	if id == "" {
		return fl.Experiment{}, errors.ErrEmptyKey
	}

	r.Lock()
	defer r.Unlock()

	e, ok := r.experiments[id]
	if !ok {
		return fl.Experiment{}, errors.ErrNotFound
	}

	return cloneExperiment(e), nil
}

func (r *memoryExperiments) List(_ context.Context, offset, limit uint64) ([]fl.Experiment, uint64, error) {
	r.Lock()
	defer r.Unlock()

	all := make([]fl.Experiment, 0, len(r.experiments))
	for _, e := range r.experiments {
		all = append(all, cloneExperiment(e))
	}
	slices.SortFunc(all, func(a, b fl.Experiment) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}

		return cmp.Compare(a.ID, b.ID)
	})

	return page(all, offset, limit), uint64(len(all)), nil
}

func (r *memoryExperiments) UpdateStatus(_ context.Context, id string, version uint64, status fl.Status) (fl.Experiment, error) {
	r.Lock()
	defer r.Unlock()

	e, ok := r.experiments[id]
	if !ok {
		return fl.Experiment{}, errors.ErrNotFound
	}
	if e.Version != version {
		return fl.Experiment{}, errors.ErrConflict
	}
	e.Status = status
	e.Version++
	e.UpdatedAt = time.Now().UTC()
	r.experiments[id] = e

	return cloneExperiment(e), nil
}

func (r *memoryExperiments) AdvanceRound(_ context.Context, id string, version uint64, next fl.GlobalModel) (fl.Experiment, error) {
	r.Lock()
	defer r.Unlock()

	e, ok := r.experiments[id]
	if !ok {
		return fl.Experiment{}, errors.ErrNotFound
	}
	if e.Version != version || next.Round != e.CurrentRound+1 {
		return fl.Experiment{}, errors.ErrConflict
	}
	if _, ok := r.models[id][next.Round]; ok {
		return fl.Experiment{}, errors.ErrConflict
	}

	e.CurrentRound = next.Round
	e.Status = fl.StatusTraining
	e.Version++
	e.UpdatedAt = time.Now().UTC()
	r.experiments[id] = e
	if r.models[id] == nil {
		r.models[id] = make(map[uint64]fl.GlobalModel)
	}
	r.models[id][next.Round] = next

	return cloneExperiment(e), nil
}

type memoryParticipants struct {
	*memoryStore
}

func (r *memoryParticipants) Create(_ context.Context, p fl.Participant) (fl.Participant, bool, error) {
	if p.ID == "" || p.ExperimentID == "" || p.PrincipalID == "" {
		return fl.Participant{}, false, errors.ErrEmptyKey
	}

	r.Lock()
	defer r.Unlock()

	key := principalKey(p.ExperimentID, p.PrincipalID)
	if id, ok := r.principals[key]; ok {
		return r.participants[id], false, nil
	}
	if _, ok := r.participants[p.ID]; ok {
		return fl.Participant{}, false, errors.ErrEntityExists
	}
	r.participants[p.ID] = p
	r.principals[key] = p.ID

	return p, true, nil
}

func (r *memoryParticipants) Get(_ context.Context, id string) (fl.Participant, error) {
	r.Lock()
	defer r.Unlock()

	p, ok := r.participants[id]
	if !ok {
		return fl.Participant{}, errors.ErrNotFound
	}

	return p, nil
}

func (r *memoryParticipants) GetByPrincipal(_ context.Context, experimentID, principalID string) (fl.Participant, error) {
	r.Lock()
	defer r.Unlock()

	id, ok := r.principals[principalKey(experimentID, principalID)]
	if !ok {
		return fl.Participant{}, errors.ErrNotFound
	}

	return r.participants[id], nil
}

func (r *memoryParticipants) ListByExperiment(_ context.Context, experimentID string) ([]fl.Participant, error) {
	r.Lock()
	defer r.Unlock()

	out := []fl.Participant{}
	for _, p := range r.participants {
		if p.ExperimentID == experimentID {
			out = append(out, p)
		}
	}
	slices.SortFunc(out, func(a, b fl.Participant) int {
		if c := a.JoinedAt.Compare(b.JoinedAt); c != 0 {
			return c
		}

		return cmp.Compare(a.ID, b.ID)
	})

	return out, nil
}

type memoryModels struct {
	*memoryStore
}

func (r *memoryModels) Create(_ context.Context, m fl.GlobalModel) error {
	if m.ExperimentID == "" {
		return errors.ErrEmptyKey
	}

	r.Lock()
	defer r.Unlock()

	if _, ok := r.experiments[m.ExperimentID]; !ok {
		return errors.ErrNotFound
	}
	rounds, ok := r.models[m.ExperimentID]
	if !ok {
		rounds = make(map[uint64]fl.GlobalModel)
		r.models[m.ExperimentID] = rounds
	}
	if _, ok := rounds[m.Round]; ok {
		return errors.ErrEntityExists
	}
	rounds[m.Round] = m

	return nil
}

func (r *memoryModels) Get(_ context.Context, experimentID string, round uint64) (fl.GlobalModel, error) {
	r.Lock()
	defer r.Unlock()

	m, ok := r.models[experimentID][round]
	if !ok {
		return fl.GlobalModel{}, errors.ErrNotFound
	}

	return m, nil
}

func (r *memoryModels) Latest(_ context.Context, experimentID string) (fl.GlobalModel, error) {
	r.Lock()
	defer r.Unlock()

	rounds := r.models[experimentID]
	if len(rounds) == 0 {
		return fl.GlobalModel{}, errors.ErrNotFound
	}

	return rounds[slices.Max(slices.Collect(maps.Keys(rounds)))], nil
}

type memoryContributions struct {
	*memoryStore
}

func (r *memoryContributions) Create(_ context.Context, c fl.Contribution) error {
	if c.ID == "" || c.ExperimentID == "" {
		return errors.ErrEmptyKey
	}

	r.Lock()
	defer r.Unlock()

	for _, existing := range r.contributions[c.ExperimentID] {
		if existing.ID == c.ID {
			return errors.ErrEntityExists
		}
	}
	r.contributions[c.ExperimentID] = append(r.contributions[c.ExperimentID], c)

	return nil
}

func (r *memoryContributions) ListByRound(_ context.Context, experimentID string, round uint64) ([]fl.Contribution, error) {
	r.Lock()
	defer r.Unlock()

	out := []fl.Contribution{}
	for _, c := range r.contributions[experimentID] {
		if c.Round == round {
			out = append(out, c)
		}
	}
	fl.SortContributions(out)

	return out, nil
}

func (r *memoryContributions) List(_ context.Context, experimentID string, offset, limit uint64) ([]fl.Contribution, uint64, error) {
	r.Lock()
	defer r.Unlock()

	all := slices.Clone(r.contributions[experimentID])
	fl.SortContributions(all)

	return page(all, offset, limit), uint64(len(all)), nil
}

type memoryLocalModels struct {
	*memoryStore
}

func (r *memoryLocalModels) Save(_ context.Context, m fl.LocalModel) error {
	if m.ExperimentID == "" || m.ParticipantID == "" {
		return errors.ErrEmptyKey
	}

	r.Lock()
	defer r.Unlock()

	r.localModels[localModelKey(m.ExperimentID, m.ParticipantID, m.Round)] = m

	return nil
}

func (r *memoryLocalModels) Get(_ context.Context, experimentID, participantID string, round uint64) (fl.LocalModel, error) {
	r.Lock()
	defer r.Unlock()

	m, ok := r.localModels[localModelKey(experimentID, participantID, round)]
	if !ok {
		return fl.LocalModel{}, errors.ErrNotFound
	}

	return m, nil
}
