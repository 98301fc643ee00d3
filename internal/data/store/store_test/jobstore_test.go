package store_test

import (
	"context"
	"sync"
	"testing"

	"github.com/akolanti/StudyMentor/internal/config"
	"github.com/akolanti/StudyMentor/internal/data/redisStore"
	"github.com/akolanti/StudyMentor/internal/data/store"
	"github.com/akolanti/StudyMentor/internal/domain/commonModels"
	"github.com/akolanti/StudyMentor/internal/domain/jobModel"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisJobStore(t *testing.T) (*miniredis.Miniredis, *store.RedisJobStore) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, store.NewRedisJobStore(redisStore.NewTestStore(client))
}

func TestRedisJobStore_Lifecycle(t *testing.T) {
	mr, jobStore := newRedisJobStore(t)

	ctx := context.WithValue(context.Background(), config.TRACE_ID_KEY, "test-trace")
	jobID := "job_abc_123"

	testJob := jobModel.Job{
		Id:     jobID,
		Status: jobModel.JobStatusComplete,
		JobPayload: jobModel.JobPayload{
			DocumentName: "lecture.pdf",
			ExamSetting:  commonModels.ExamSetting{MultipleChoice: 1},
			Quiz: &commonModels.QuizResult{Questions: []commonModels.GeneratedQuestion{{
				Case:          commonModels.CaseSubjective,
				Question:      "Define a monad",
				Choices:       commonModels.BlankChoices(),
				CorrectAnswer: commonModels.TextAnswer("a monoid in the category of endofunctors"),
			}}},
		},
	}

	t.Run("Save and Get Roundtrip", func(t *testing.T) {
		if err := jobStore.SaveJob(ctx, testJob); err != nil {
			t.Fatalf("SaveJob failed: %v", err)
		}

		retrievedJob, found := jobStore.GetJob(ctx, jobID)
		if !found {
			t.Fatal("Job was saved but not found in Redis")
		}
		if retrievedJob.JobPayload.Quiz == nil || len(retrievedJob.JobPayload.Quiz.Questions) != 1 {
			t.Fatalf("quiz not persisted: %+v", retrievedJob.JobPayload)
		}
		if !retrievedJob.JobPayload.Quiz.Questions[0].IsSubjective() {
			t.Error("blank choices sentinel lost in roundtrip")
		}
	})

	t.Run("Get Non-Existent Job", func(t *testing.T) {
		if _, found := jobStore.GetJob(ctx, "ghost-id"); found {
			t.Error("Expected found=false for non-existent key")
		}
	})

	t.Run("Corrupt record is not found", func(t *testing.T) {
		_ = mr.Set("job:broken", "{not json")
		if _, found := jobStore.GetJob(ctx, "broken"); found {
			t.Error("corrupt record should not be reported as found")
		}
	})

	t.Run("Delete Job", func(t *testing.T) {
		jobStore.DeleteJob(ctx, jobID)
		if mr.Exists("job:" + jobID) {
			t.Error("Job still exists in Redis after DeleteJob call")
		}
	})
}

func TestRedisJobStore_Race(t *testing.T) {
	_, jobStore := newRedisJobStore(t)
	ctx := context.WithValue(context.Background(), config.TRACE_ID_KEY, "race-trace")
	job := jobModel.Job{Id: "race-job"}

	const workers = 50
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = jobStore.SaveJob(ctx, job)
			_, _ = jobStore.GetJob(ctx, "race-job")
		}()
	}
	wg.Wait()

	if _, found := jobStore.GetJob(ctx, "race-job"); !found {
		t.Error("job should exist after concurrent saves")
	}
}

func TestInMemoryJobStore(t *testing.T) {
	s := store.NewInMemoryJobStore()
	ctx := context.Background()
	_ = s.SaveJob(ctx, jobModel.Job{Id: "a", Status: jobModel.JobStatusQueued})

	got, ok := s.GetJob(ctx, "a")
	if !ok || got.Status != jobModel.JobStatusQueued {
		t.Fatalf("unexpected job %+v found=%v", got, ok)
	}
	s.DeleteJob(ctx, "a")
	if _, ok := s.GetJob(ctx, "a"); ok {
		t.Error("job should be gone after delete")
	}
}
