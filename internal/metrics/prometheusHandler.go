package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var HttpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "http_requests_total",
	Help: "Total number of requests labelled by path and status",
}, []string{"path", "status"})

var countJobsInQueue = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "count_jobs_in_queue",
	Help: "Number of quiz jobs waiting for a worker",
})

var dispatcherSignalCount = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "dispatcher_signal_count",
	Help: "How often the dispatcher has signaled to start worker",
})

var activeWorkerCount = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "active_worker_count",
	Help: "Number of active workers",
})

var pagesExtracted = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "pages_extracted_total",
	Help: "Pages run through OCR or vision, labelled by mode and outcome",
}, []string{"mode", "outcome"})

var questionsGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "questions_generated_total",
	Help: "Questions accepted from the model, labelled by case",
}, []string{"case"})

var answersGraded = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "answers_graded_total",
	Help: "Graded answers labelled by verdict (error when grading failed)",
}, []string{"verdict"})

var quizAnomalies = promauto.NewCounter(prometheus.CounterOpts{
	Name: "quiz_count_anomalies_total",
	Help: "Quizzes whose question count differed from the request",
})

var breakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "backend_breaker_state",
	Help: "Circuit breaker state per backend: 0 closed, 1 half-open, 2 open",
}, []string{"backend"})

type HttpStatusRecorder struct {
	http.ResponseWriter
	Status int
}

func (r *HttpStatusRecorder) WriteHeader(code int) {
	r.Status = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush keeps streaming responses (the MCP endpoint) working through the recorder.
func (r *HttpStatusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func IncrementJobsInQueue() {
	countJobsInQueue.Inc()
}

func DecrementJobsInQueue() {
	countJobsInQueue.Dec()
}

func StartDispatcherSignalCount() {
	dispatcherSignalCount.Inc()
}

func IncrementActiveWorkerCount() {
	activeWorkerCount.Inc()
}
func DecrementActiveWorkerCount() {
	activeWorkerCount.Dec()
}

func CountPage(mode string, ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	pagesExtracted.WithLabelValues(mode, outcome).Inc()
}

func CountQuestions(questionCase string, n int) {
	questionsGenerated.WithLabelValues(questionCase).Add(float64(n))
}

func CountQuizAnomaly() {
	quizAnomalies.Inc()
}

func CountVerdict(verdict string) {
	answersGraded.WithLabelValues(verdict).Inc()
}

func SetBreakerState(backend string, state int) {
	breakerState.WithLabelValues(backend).Set(float64(state))
}

var requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "process_quiz_job_duration_seconds",
	Help:    "Total time spent processing a quiz job.",
	Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
}, []string{"status"})

var dependencyLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "dependency_latency_seconds",
	Help:    "Latency of external service calls.",
	Buckets: []float64{.05, .1, .25, .5, 1, 2, 5, 10, 30},
}, []string{"service"})

func CaptureExecutionMetrics(label string, timeElapsed time.Duration) {
	dependencyLatency.WithLabelValues(label).Observe(timeElapsed.Seconds())
}

func CaptureJobMetrics(label string, timeElapsed time.Duration) {
	requestDuration.WithLabelValues(label).Observe(timeElapsed.Seconds())
}
