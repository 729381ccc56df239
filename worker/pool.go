package worker // import "github.com/zcomx/zco-mx/worker"

import (
	"time"

	"go.uber.org/zap"

	"github.com/zcomx/zco-mx/log"
	"github.com/zcomx/zco-mx/model"
	"github.com/zcomx/zco-mx/store"
)

const (
	requeueBaseDelay = 30 * time.Second
	requeueMaxDelay  = 30 * time.Minute
)

// requeueDelay backs a requeued job off exponentially so a hard
// failure cannot burn the whole budget in one burst.
func requeueDelay(requeues int) time.Duration {
	delay := requeueBaseDelay
	for i := 1; i < requeues; i++ {
		delay *= 2
		if delay >= requeueMaxDelay {
			return requeueMaxDelay
		}
	}
	return delay
}

type Pool struct {
	queue chan model.Job
}

// NewPool creates a pool of background workers driving the
// orchestrator.
func NewPool(s *store.Store, orch *Orchestrator, size int) *Pool {
	workerPool := &Pool{
		queue: make(chan model.Job),
	}

	for i := 0; i < size; i++ {
		worker := &Worker{id: i, store: s, orch: orch, queue: workerPool.queue}
		go worker.Run(workerPool.queue)
	}
	return workerPool
}

func (p *Pool) Push(jobs ...model.Job) {
	for _, job := range jobs {
		p.queue <- job
	}
}

func (p *Pool) GetQueue() chan model.Job {
	return p.queue
}

// Resume pushes jobs left pending or running by a previous process back
// onto the queue.
func (p *Pool) Resume(s *store.Store) error {
	jobs, err := s.PendingJobs()
	if err != nil {
		return err
	}
	go func() {
		for _, job := range jobs {
			log.Info("Resuming job", zap.Int("job_id", job.ID), zap.String("type", job.Type))
			p.queue <- *job
		}
	}()
	return nil
}

type Worker struct {
	id    int
	store *store.Store
	orch  *Orchestrator
	queue chan<- model.Job
}

func (w *Worker) Run(c <-chan model.Job) {
	log.Debug("Worker is running", zap.Int("worker_id", w.id))

	for {
		job := <-c

		log.Debug("Job received by worker",
			zap.Int("worker_id", w.id),
			zap.Int("job_id", job.ID),
			zap.String("type", job.Type))

		if err := w.store.UpdateJobStatus(job.ID, model.JobStatusRunning); err != nil {
			log.Error("Failed to mark job running", zap.Int("job_id", job.ID), zap.Error(err))
		}

		followups, retry, err := w.orch.Handle(&job)
		switch {
		case err == nil:
			if err := w.store.UpdateJobStatus(job.ID, model.JobStatusDone); err != nil {
				log.Error("Failed to mark job done", zap.Int("job_id", job.ID), zap.Error(err))
			}
			w.pushFollowups(followups)
		case retry:
			w.requeue(job, err)
		default:
			log.Error("Job failed", zap.Int("job_id", job.ID), zap.Error(err))
			if err := w.store.UpdateJobStatus(job.ID, model.JobStatusFailed); err != nil {
				log.Error("Failed to mark job failed", zap.Int("job_id", job.ID), zap.Error(err))
			}
		}
	}
}

func (w *Worker) pushFollowups(followups []model.Job) {
	for _, followup := range followups {
		added, err := w.store.AddJob(followup)
		if err != nil {
			log.Error("Failed to add followup job",
				zap.String("type", followup.Type), zap.Error(err))
			continue
		}
		go func(job model.Job) { w.queue <- job }(*added)
	}
}

// requeue creates a fresh pending job carrying the same target with the
// budget decremented. Once the budget is spent the job fails for good.
func (w *Worker) requeue(job model.Job, cause error) {
	if err := w.store.UpdateJobStatus(job.ID, model.JobStatusFailed); err != nil {
		log.Error("Failed to mark job failed", zap.Int("job_id", job.ID), zap.Error(err))
	}

	if job.Requeues+1 >= job.MaxRequeues {
		log.Error("Job exhausted its requeue budget",
			zap.Int("job_id", job.ID),
			zap.Int("requeues", job.Requeues),
			zap.Error(cause))
		return
	}

	next := job
	next.ID = 0
	next.Status = model.JobStatusPending
	next.Requeues = job.Requeues + 1
	added, err := w.store.AddJob(next)
	if err != nil {
		log.Error("Failed to requeue job", zap.Int("job_id", job.ID), zap.Error(err))
		return
	}
	delay := requeueDelay(added.Requeues)
	log.Info("Job requeued",
		zap.Int("job_id", added.ID),
		zap.Int("requeues", added.Requeues),
		zap.Duration("delay", delay),
		zap.Error(cause))

	go func() {
		time.Sleep(delay)
		w.queue <- *added
	}()
}
