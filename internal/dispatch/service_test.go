package dispatch_test

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/wilesp/plumbflow-platform/internal/classifier"
	"github.com/wilesp/plumbflow-platform/internal/config"
	"github.com/wilesp/plumbflow-platform/internal/dispatch"
	"github.com/wilesp/plumbflow-platform/internal/matching"
	"github.com/wilesp/plumbflow-platform/internal/models"
	"github.com/wilesp/plumbflow-platform/internal/pricing"
)

// ── Fakes ──

type fakeStore struct {
	jobs     map[int64]*models.Job
	plumbers []models.Plumber
	leads    []*models.Lead
	ledger   []models.CreditTransaction

	classified []int64
	acceptErr  error
}

func newFakeStore(plumbers ...models.Plumber) *fakeStore {
	return &fakeStore{jobs: map[int64]*models.Job{}, plumbers: plumbers}
}

func (f *fakeStore) addJob(j *models.Job) {
	cp := *j
	f.jobs[j.ID] = &cp
}

func (f *fakeStore) PendingJobs(_ context.Context, limit int) ([]models.Job, error) {
	ids := make([]int64, 0, len(f.jobs))
	for id, j := range f.jobs {
		if j.Status == models.JobStatusPending {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(a, b int) bool { return ids[a] < ids[b] })

	var out []models.Job
	for _, id := range ids {
		if len(out) == limit {
			break
		}
		out = append(out, *f.jobs[id])
	}
	return out, nil
}

func (f *fakeStore) GetJob(_ context.Context, id int64) (*models.Job, error) {
	j, ok := f.jobs[id]
	if !ok {
		return nil, nil
	}
	cp := *j
	return &cp, nil
}

func (f *fakeStore) UpdateJobClassification(_ context.Context, job *models.Job) error {
	f.classified = append(f.classified, job.ID)
	f.addJob(job)
	return nil
}

func (f *fakeStore) SetJobStatus(_ context.Context, jobID int64, status models.JobStatus) error {
	j, ok := f.jobs[jobID]
	if !ok {
		return models.ErrNotFound
	}
	j.Status = status
	return nil
}

func (f *fakeStore) ActivePlumbers(context.Context) ([]models.Plumber, error) {
	var out []models.Plumber
	for _, p := range f.plumbers {
		if p.Status == models.PlumberStatusActive {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeStore) plumber(id int64) *models.Plumber {
	for i := range f.plumbers {
		if f.plumbers[i].ID == id {
			return &f.plumbers[i]
		}
	}
	return nil
}

func (f *fakeStore) GetPlumber(_ context.Context, id int64) (*models.Plumber, error) {
	if p := f.plumber(id); p != nil {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeStore) GetPlumberByTelegramID(_ context.Context, telegramID int64) (*models.Plumber, error) {
	for _, p := range f.plumbers {
		if p.TelegramID != nil && *p.TelegramID == telegramID {
			cp := p
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) InsertLeads(_ context.Context, leads []models.Lead) error {
	for i := range leads {
		l := leads[i]
		f.leads = append(f.leads, &l)
	}
	return nil
}

func (f *fakeStore) lead(id string) *models.Lead {
	for _, l := range f.leads {
		if l.ID == id {
			return l
		}
	}
	return nil
}

func (f *fakeStore) GetLead(_ context.Context, id string) (*models.Lead, error) {
	if l := f.lead(id); l != nil {
		cp := *l
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeStore) NextQueuedLead(_ context.Context, jobID int64) (*models.Lead, error) {
	var next *models.Lead
	for _, l := range f.leads {
		if l.JobID != jobID || l.Status != models.LeadStatusQueued {
			continue
		}
		if next == nil || l.Ranking < next.Ranking {
			next = l
		}
	}
	if next == nil {
		return nil, nil
	}
	cp := *next
	return &cp, nil
}

func (f *fakeStore) OfferLead(_ context.Context, leadID string, offeredAt, expiresAt time.Time) error {
	l := f.lead(leadID)
	if l == nil {
		return models.ErrNotFound
	}
	l.Status = models.LeadStatusOffered
	l.OfferedAt = &offeredAt
	l.ExpiresAt = &expiresAt
	return nil
}

func (f *fakeStore) CloseLead(_ context.Context, leadID string, status models.LeadStatus, at time.Time) error {
	l := f.lead(leadID)
	if l == nil {
		return models.ErrNotFound
	}
	if l.Status != models.LeadStatusOffered && l.Status != models.LeadStatusQueued {
		return models.ErrLeadNotOffered
	}
	l.Status = status
	l.RespondedAt = &at
	return nil
}

func (f *fakeStore) ExpiredOffers(_ context.Context, now time.Time) ([]models.Lead, error) {
	var out []models.Lead
	for _, l := range f.leads {
		if l.IsOpen() && l.Expired(now) {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (f *fakeStore) AcceptLead(_ context.Context, leadID string, plumberID int64, at time.Time) (*models.Acceptance, error) {
	if f.acceptErr != nil {
		return nil, f.acceptErr
	}

	l := f.lead(leadID)
	p := f.plumber(plumberID)
	if p.CreditBalance < l.FinderFee {
		return nil, models.ErrInsufficientCredits
	}

	p.CreditBalance -= l.FinderFee
	p.CurrentJobsCount++
	l.Status = models.LeadStatusAccepted
	l.RespondedAt = &at
	for _, other := range f.leads {
		if other.JobID == l.JobID && other.ID != l.ID && other.Status == models.LeadStatusQueued {
			other.Status = models.LeadStatusSuperseded
		}
	}
	f.jobs[l.JobID].Status = models.JobStatusAssigned

	id := l.ID
	f.ledger = append(f.ledger, models.CreditTransaction{
		PlumberID: p.ID, LeadID: &id, Kind: models.TransactionLeadFee,
		Amount: -l.FinderFee, BalanceAfter: p.CreditBalance, CreatedAt: at,
	})

	return &models.Acceptance{
		Lead: *l, Job: *f.jobs[l.JobID], Plumber: *p,
		Charged: l.FinderFee, NewBalance: p.CreditBalance,
	}, nil
}

type fakeNotifier struct {
	offers      []models.LeadOffer
	acceptances []models.Acceptance
	lowCredit   []float64
	expired     []models.LeadOffer
	failOffers  bool
}

func (n *fakeNotifier) NotifyLeadOffer(_ context.Context, offer *models.LeadOffer) error {
	if n.failOffers {
		return errors.New("telegram unreachable")
	}
	n.offers = append(n.offers, *offer)
	return nil
}

func (n *fakeNotifier) NotifyAcceptance(_ context.Context, acc *models.Acceptance) error {
	n.acceptances = append(n.acceptances, *acc)
	return nil
}

func (n *fakeNotifier) NotifyLowCredit(_ context.Context, _ *models.Plumber, balance float64) error {
	n.lowCredit = append(n.lowCredit, balance)
	return nil
}

func (n *fakeNotifier) NotifyOfferExpired(_ context.Context, offer *models.LeadOffer) error {
	n.expired = append(n.expired, *offer)
	return nil
}

type fakeQuotes struct {
	quotes map[string]*pricing.Breakdown
	ttls   map[string]time.Duration
}

func newFakeQuotes() *fakeQuotes {
	return &fakeQuotes{quotes: map[string]*pricing.Breakdown{}, ttls: map[string]time.Duration{}}
}

func (q *fakeQuotes) SetQuote(_ context.Context, leadID string, quote *pricing.Breakdown, ttl time.Duration) error {
	q.quotes[leadID] = quote
	q.ttls[leadID] = ttl
	return nil
}

func (q *fakeQuotes) GetQuote(_ context.Context, leadID string) (*pricing.Breakdown, error) {
	if b, ok := q.quotes[leadID]; ok {
		return b, nil
	}
	return nil, models.ErrNotFound
}

func (q *fakeQuotes) DeleteQuote(_ context.Context, leadID string) error {
	delete(q.quotes, leadID)
	delete(q.ttls, leadID)
	return nil
}

type fakeLocker struct {
	held     map[string]bool
	unlocked []string
}

func (l *fakeLocker) TryLock(_ context.Context, name string, _ time.Duration) (bool, error) {
	if l.held[name] {
		return false, nil
	}
	l.held[name] = true
	return true, nil
}

func (l *fakeLocker) Unlock(_ context.Context, name string) error {
	delete(l.held, name)
	l.unlocked = append(l.unlocked, name)
	return nil
}

type clock struct{ t time.Time }

func (c *clock) Now() time.Time { return c.t }

// ── Fixtures ──

// Wednesday mid-morning, standard rates
var start = time.Date(2026, time.October, 14, 10, 0, 0, 0, time.UTC)

type harness struct {
	svc      *dispatch.Service
	store    *fakeStore
	notifier *fakeNotifier
	quotes   *fakeQuotes
	locker   *fakeLocker
	clock    *clock
}

func testConfig() *config.Config {
	return &config.Config{
		DispatchInterval:   5 * time.Minute,
		ExpiryInterval:     time.Minute,
		OfferTTL:           2 * time.Hour,
		MaxJobsPerCycle:    20,
		MatchesPerJob:      3,
		MinClassConfidence: 0.6,
		LowCreditThreshold: 50,
	}
}

func newHarness(plumbers ...models.Plumber) *harness {
	h := &harness{
		store:    newFakeStore(plumbers...),
		notifier: &fakeNotifier{},
		quotes:   newFakeQuotes(),
		locker:   &fakeLocker{held: map[string]bool{}},
		clock:    &clock{t: start},
	}

	h.svc = dispatch.New(
		h.store,
		h.notifier,
		h.quotes,
		h.locker,
		classifier.NewKeywordClassifier(),
		matching.New(nil),
		pricing.New(nil, pricing.WithClock(h.clock.Now)),
		testConfig(),
		zap.NewNop(),
		dispatch.WithClock(h.clock.Now),
	)
	return h
}

func telegram(id int64) *int64 { return &id }

func basePlumber(id int64, base string, area models.ServiceArea) models.Plumber {
	return models.Plumber{
		ID:            id,
		Name:          "Plumber",
		TelegramID:    telegram(1000 + id),
		BasePostcode:  base,
		HourlyRate:    60,
		EmergencyRate: 90,
		Status:        models.PlumberStatusActive,
		CreditBalance: 100,
		ServiceAreas:  models.ServiceAreas{area},
	}
}

// local expert, ranks first
func localExpert() models.Plumber {
	p := basePlumber(1, "SW19", models.ServiceArea{Prefix: "SW19", Priority: models.PriorityPrimary, MinJobValue: 50})
	p.Skills = []string{"leaking_tap", "toilet_flush"}
	p.CurrentJobsCount = 2
	p.Performance = models.PerformanceMetrics{ContactRate: 0.85, ConversionRate: 0.4, AverageRating: 4.6, RatingCount: 40}
	return p
}

// neighbour, ranks second
func neighbour() models.Plumber {
	p := basePlumber(2, "SW18", models.ServiceArea{Prefix: "SW1", Priority: models.PrioritySecondary})
	p.Skills = []string{"tap"}
	p.CurrentJobsCount = 6
	p.Performance = models.PerformanceMetrics{ContactRate: 0.75, ConversionRate: 0.25, AverageRating: 4.2}
	return p
}

func tapJob() *models.Job {
	return &models.Job{
		ID:             7,
		Title:          "Leaking tap",
		JobType:        "leaking_tap",
		Postcode:       "SW19",
		Urgency:        models.UrgencyThisWeek,
		Complexity:     models.ComplexityEasy,
		EstimatedValue: 120,
		Confidence:     0.85,
		Status:         models.JobStatusPending,
	}
}

// dispatched sets up the tap job with two ranked leads, the first on offer
func dispatched(t *testing.T, plumbers ...models.Plumber) (*harness, *dispatch.Result) {
	t.Helper()

	if len(plumbers) == 0 {
		plumbers = []models.Plumber{localExpert(), neighbour()}
	}
	h := newHarness(plumbers...)
	job := tapJob()
	h.store.addJob(job)

	res, err := h.svc.DispatchJob(context.Background(), job)
	if err != nil {
		t.Fatalf("DispatchJob: %v", err)
	}
	return h, res
}

func findLead(h *harness, plumberID int64) *models.Lead {
	for _, l := range h.store.leads {
		if l.PlumberID == plumberID {
			return l
		}
	}
	return &models.Lead{}
}

func leadFor(t *testing.T, h *harness, plumberID int64) *models.Lead {
	t.Helper()
	l := findLead(h, plumberID)
	if l.ID == "" {
		t.Fatalf("no lead for plumber %d", plumberID)
	}
	return l
}

// ── DispatchJob ──

func TestDispatchJob_OffersBestMatch(t *testing.T) {
	h, res := dispatched(t)

	if res.Status != models.JobStatusMatched || res.Leads != 2 {
		t.Fatalf("result = %+v, want matched with 2 leads", res)
	}
	if got := h.store.jobs[7].Status; got != models.JobStatusMatched {
		t.Errorf("job status = %q, want matched", got)
	}

	first, second := leadFor(t, h, 1), leadFor(t, h, 2)

	if first.Ranking != 1 || second.Ranking != 2 {
		t.Errorf("rankings = %d/%d, want 1/2", first.Ranking, second.Ranking)
	}
	if first.Status != models.LeadStatusOffered {
		t.Errorf("first lead status = %q, want offered", first.Status)
	}
	if second.Status != models.LeadStatusQueued {
		t.Errorf("second lead status = %q, want queued", second.Status)
	}
	if first.ExpiresAt == nil || !first.ExpiresAt.Equal(start.Add(2*time.Hour)) {
		t.Errorf("expires at = %v, want %v", first.ExpiresAt, start.Add(2*time.Hour))
	}

	// 0.5h at 70/h, 2km each way, 10 parts: subtotal 81.8 sits in the £15 tier
	if first.FinderFee != 15 {
		t.Errorf("finder fee = %v, want 15", first.FinderFee)
	}
	if first.CustomerTotal != 106.62 || first.PlumberEarnings != 91.62 {
		t.Errorf("total/earnings = %v/%v, want 106.62/91.62", first.CustomerTotal, first.PlumberEarnings)
	}
	if len(first.Reasoning) == 0 || len(first.Breakdown) == 0 {
		t.Error("lead should carry reasoning and breakdown JSON")
	}

	if len(h.notifier.offers) != 1 || h.notifier.offers[0].Plumber.ID != 1 {
		t.Fatalf("offers = %+v, want one offer to plumber 1", h.notifier.offers)
	}
	if q, ok := h.quotes.quotes[first.ID]; !ok || q.CustomerTotal != 106.62 {
		t.Errorf("cached quote = %+v, want customer total 106.62", q)
	}
	if ttl := h.quotes.ttls[first.ID]; ttl != 2*time.Hour {
		t.Errorf("quote ttl = %v, want 2h", ttl)
	}
}

func TestDispatchJob_ClassifiesRawJob(t *testing.T) {
	h := newHarness(localExpert(), neighbour())

	job := &models.Job{
		ID:          8,
		Title:       "Dripping tap",
		Description: "Kitchen tap drips all night, just needs a washer",
		Postcode:    "SW19",
		Status:      models.JobStatusPending,
	}
	h.store.addJob(job)

	res, err := h.svc.DispatchJob(context.Background(), job)
	if err != nil {
		t.Fatalf("DispatchJob: %v", err)
	}

	if len(h.store.classified) != 1 || h.store.classified[0] != 8 {
		t.Errorf("classified = %v, want [8]", h.store.classified)
	}
	saved := h.store.jobs[8]
	if saved.JobType != "leaking_tap" || saved.Complexity != models.ComplexityEasy {
		t.Errorf("saved job = %s/%s, want leaking_tap/easy", saved.JobType, saved.Complexity)
	}
	if res.Status != models.JobStatusMatched {
		t.Errorf("status = %q, want matched", res.Status)
	}
}

func TestDispatchJob_LowConfidenceIsSkipped(t *testing.T) {
	h := newHarness(localExpert())

	job := tapJob()
	job.Confidence = 0.4
	h.store.addJob(job)

	res, err := h.svc.DispatchJob(context.Background(), job)
	if err != nil {
		t.Fatalf("DispatchJob: %v", err)
	}

	if res.Status != models.JobStatusSkipped {
		t.Errorf("status = %q, want skipped", res.Status)
	}
	if len(h.store.leads) != 0 || len(h.notifier.offers) != 0 {
		t.Errorf("low confidence job should produce no leads or offers")
	}
}

func TestDispatchJob_NoSurvivorsIsUnmatched(t *testing.T) {
	// far away, short on credit and busy
	far := basePlumber(3, "N1", models.ServiceArea{Prefix: "N1", Priority: models.PriorityPrimary})
	far.CreditBalance = 20
	far.CurrentJobsCount = 9

	h := newHarness(far)
	job := tapJob()
	h.store.addJob(job)

	res, err := h.svc.DispatchJob(context.Background(), job)
	if err != nil {
		t.Fatalf("DispatchJob: %v", err)
	}

	if res.Status != models.JobStatusUnmatched || res.Offered != nil {
		t.Errorf("result = %+v, want unmatched without offer", res)
	}
	if got := h.store.jobs[7].Status; got != models.JobStatusUnmatched {
		t.Errorf("job status = %q, want unmatched", got)
	}
}

func TestDispatchJob_MalformedPlumberIsSkipped(t *testing.T) {
	broken := localExpert()
	broken.ID = 5
	broken.BasePostcode = ""

	h, res := dispatched(t, broken, neighbour())

	if res.Leads != 1 {
		t.Fatalf("leads = %d, want 1", res.Leads)
	}
	if h.store.leads[0].PlumberID != 2 {
		t.Errorf("lead went to plumber %d, want 2", h.store.leads[0].PlumberID)
	}
}

func TestDispatchJob_UncertifiedMatchIsNotOffered(t *testing.T) {
	// scores well enough to match a gas job but cannot be quoted for it
	strong := basePlumber(11, "SW19", models.ServiceArea{Prefix: "SW19", Priority: models.PriorityPrimary})
	strong.Skills = []string{"boiler_repair"}
	strong.AvailableToday = true
	strong.Performance = models.PerformanceMetrics{ContactRate: 1, ConversionRate: 1, AverageRating: 5}

	certified := basePlumber(12, "SW19", models.ServiceArea{Prefix: "SW19", Priority: models.PriorityPrimary})
	certified.Skills = []string{"boiler_repair"}
	certified.GasSafeCertified = true

	h := newHarness(strong, certified)
	job := &models.Job{
		ID:              9,
		JobType:         "boiler_repair",
		Postcode:        "SW19",
		Urgency:         models.UrgencyThisWeek,
		Complexity:      models.ComplexityMedium,
		EstimatedValue:  250,
		GasSafeRequired: true,
		Confidence:      0.85,
		Status:          models.JobStatusPending,
	}
	h.store.addJob(job)

	res, err := h.svc.DispatchJob(context.Background(), job)
	if err != nil {
		t.Fatalf("DispatchJob: %v", err)
	}

	if res.Leads != 1 || res.Offered == nil || res.Offered.PlumberID != 12 {
		t.Fatalf("result = %+v, want a single lead for plumber 12", res)
	}
}

func TestDispatchJob_GasFlagWithoutTemplateNeedsCertificate(t *testing.T) {
	h := newHarness(localExpert())

	job := tapJob()
	job.JobType = "gas_hob_install"
	job.GasSafeRequired = true
	h.store.addJob(job)

	res, err := h.svc.DispatchJob(context.Background(), job)
	if err != nil {
		t.Fatalf("DispatchJob: %v", err)
	}

	if res.Status != models.JobStatusUnmatched || res.Leads != 0 {
		t.Errorf("result = %+v, want unmatched without leads", res)
	}
	if len(h.store.leads) != 0 || len(h.notifier.offers) != 0 {
		t.Error("uncertified plumber must not be offered a gas job")
	}
}

func TestDispatchJob_InvalidJob(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.Job)
	}{
		{"missing postcode", func(j *models.Job) { j.Postcode = "" }},
		{"unknown urgency", func(j *models.Job) { j.Urgency = "whenever" }},
		{"negative parts cost", func(j *models.Job) { j.EstimatedPartsCost = -5 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(localExpert())

			job := tapJob()
			tt.mutate(job)
			h.store.addJob(job)

			res, err := h.svc.DispatchJob(context.Background(), job)
			if err != nil {
				t.Fatalf("DispatchJob: %v", err)
			}

			if res.Status != models.JobStatusInvalid {
				t.Errorf("status = %q, want invalid", res.Status)
			}
			if got := h.store.jobs[7].Status; got != models.JobStatusInvalid {
				t.Errorf("stored status = %q, want invalid", got)
			}
			if len(h.store.leads) != 0 {
				t.Error("invalid job should produce no leads")
			}
		})
	}
}

func TestDispatchJob_NotificationFailureKeepsOffer(t *testing.T) {
	h := newHarness(localExpert())
	h.notifier.failOffers = true

	job := tapJob()
	h.store.addJob(job)

	res, err := h.svc.DispatchJob(context.Background(), job)
	if err != nil {
		t.Fatalf("DispatchJob: %v", err)
	}
	if res.Offered == nil || h.store.leads[0].Status != models.LeadStatusOffered {
		t.Error("offer should stand when the notification fails")
	}
}

// ── RunCycle ──

func TestRunCycle_ProcessesPendingJobs(t *testing.T) {
	h := newHarness(localExpert(), neighbour())

	h.store.addJob(tapJob())

	low := tapJob()
	low.ID = 8
	low.Confidence = 0.3
	h.store.addJob(low)

	done := tapJob()
	done.ID = 9
	done.Status = models.JobStatusAssigned
	h.store.addJob(done)

	stats, err := h.svc.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}

	want := dispatch.CycleStats{Jobs: 2, Matched: 1, LowConfidence: 1}
	if stats != want {
		t.Errorf("stats = %+v, want %+v", stats, want)
	}
	if len(h.locker.unlocked) != 1 || h.locker.unlocked[0] != dispatch.DispatchLock {
		t.Errorf("unlocked = %v, want [%s]", h.locker.unlocked, dispatch.DispatchLock)
	}
}

func TestRunCycle_MalformedJobDoesNotBlockQueue(t *testing.T) {
	h := newHarness(localExpert(), neighbour())
	cfg := testConfig()

	for id := int64(1); id <= int64(cfg.MaxJobsPerCycle); id++ {
		bad := tapJob()
		bad.ID = id
		bad.Postcode = ""
		h.store.addJob(bad)
	}

	good := tapJob()
	good.ID = 1000
	h.store.addJob(good)

	first, err := h.svc.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("first RunCycle: %v", err)
	}
	if want := (dispatch.CycleStats{Jobs: cfg.MaxJobsPerCycle, Invalid: cfg.MaxJobsPerCycle}); first != want {
		t.Errorf("first cycle = %+v, want %+v", first, want)
	}

	second, err := h.svc.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("second RunCycle: %v", err)
	}
	if want := (dispatch.CycleStats{Jobs: 1, Matched: 1}); second != want {
		t.Errorf("second cycle = %+v, want %+v", second, want)
	}

	if got := h.store.jobs[1000].Status; got != models.JobStatusMatched {
		t.Errorf("valid job status = %q, want matched", got)
	}
	if got := h.store.jobs[1].Status; got != models.JobStatusInvalid {
		t.Errorf("malformed job status = %q, want invalid", got)
	}
}

func TestRunCycle_SkipsWhenLocked(t *testing.T) {
	h := newHarness(localExpert())
	h.store.addJob(tapJob())
	h.locker.held[dispatch.DispatchLock] = true

	stats, err := h.svc.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}

	if !stats.Skipped || stats.Jobs != 0 {
		t.Errorf("stats = %+v, want skipped", stats)
	}
	if h.store.jobs[7].Status != models.JobStatusPending {
		t.Error("job should stay pending while another cycle runs")
	}
}

// ── AcceptLead ──

func TestAcceptLead_ChargesFeeAndAssigns(t *testing.T) {
	h, res := dispatched(t)

	acc, err := h.svc.AcceptLead(context.Background(), res.Offered.ID, 1001)
	if err != nil {
		t.Fatalf("AcceptLead: %v", err)
	}

	if acc.Charged != 15 || acc.NewBalance != 85 {
		t.Errorf("charged/balance = %v/%v, want 15/85", acc.Charged, acc.NewBalance)
	}
	if h.store.jobs[7].Status != models.JobStatusAssigned {
		t.Errorf("job status = %q, want assigned", h.store.jobs[7].Status)
	}
	if got := leadFor(t, h, 2).Status; got != models.LeadStatusSuperseded {
		t.Errorf("sibling lead = %q, want superseded", got)
	}
	if len(h.store.ledger) != 1 || h.store.ledger[0].Amount != -15 {
		t.Errorf("ledger = %+v, want one -15 entry", h.store.ledger)
	}
	if len(h.notifier.acceptances) != 1 {
		t.Errorf("acceptance notices = %d, want 1", len(h.notifier.acceptances))
	}
	if len(h.notifier.lowCredit) != 0 {
		t.Errorf("no low credit warning expected at 85, got %v", h.notifier.lowCredit)
	}
	if _, ok := h.quotes.quotes[res.Offered.ID]; ok {
		t.Error("accepted lead's quote should be evicted")
	}
}

func TestAcceptLead_WarnsOnLowCredit(t *testing.T) {
	p := localExpert()
	p.CreditBalance = 60
	h, res := dispatched(t, p, neighbour())

	acc, err := h.svc.AcceptLead(context.Background(), res.Offered.ID, 1001)
	if err != nil {
		t.Fatalf("AcceptLead: %v", err)
	}

	if acc.NewBalance != 45 {
		t.Errorf("balance = %v, want 45", acc.NewBalance)
	}
	if len(h.notifier.lowCredit) != 1 || h.notifier.lowCredit[0] != 45 {
		t.Errorf("low credit warnings = %v, want [45]", h.notifier.lowCredit)
	}
}

func TestAcceptLead_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		telegram int64
		lead     func(h *harness) string
		setup    func(h *harness)
		wantErr  error
	}{
		{
			name:     "unknown plumber",
			telegram: 42,
			lead:     func(h *harness) string { return findLead(h, 1).ID },
			wantErr:  models.ErrNotFound,
		},
		{
			name:     "unknown lead",
			telegram: 1001,
			lead:     func(*harness) string { return "missing" },
			wantErr:  models.ErrNotFound,
		},
		{
			name:     "someone else's lead",
			telegram: 1002,
			lead:     func(h *harness) string { return findLead(h, 1).ID },
			wantErr:  models.ErrWrongPlumber,
		},
		{
			name:     "queued lead",
			telegram: 1002,
			lead:     func(h *harness) string { return findLead(h, 2).ID },
			wantErr:  models.ErrLeadNotOffered,
		},
		{
			name:     "expired offer",
			telegram: 1001,
			lead:     func(h *harness) string { return findLead(h, 1).ID },
			setup:    func(h *harness) { h.clock.t = start.Add(2 * time.Hour) },
			wantErr:  models.ErrLeadExpired,
		},
		{
			name:     "not enough credit",
			telegram: 1001,
			lead:     func(h *harness) string { return findLead(h, 1).ID },
			setup:    func(h *harness) { h.store.plumber(1).CreditBalance = 10 },
			wantErr:  models.ErrInsufficientCredits,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := dispatched(t)
			if tt.setup != nil {
				tt.setup(h)
			}

			_, err := h.svc.AcceptLead(context.Background(), tt.lead(h), tt.telegram)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}

			if h.store.jobs[7].Status != models.JobStatusMatched {
				t.Errorf("job status = %q, want matched", h.store.jobs[7].Status)
			}
			if len(h.store.ledger) != 0 {
				t.Errorf("ledger should stay empty, got %+v", h.store.ledger)
			}
		})
	}
}

func TestAcceptLead_StoreFailure(t *testing.T) {
	h, res := dispatched(t)
	h.store.acceptErr = errors.New("connection reset")

	if _, err := h.svc.AcceptLead(context.Background(), res.Offered.ID, 1001); err == nil {
		t.Fatal("expected store error")
	}
	if len(h.notifier.acceptances) != 0 {
		t.Error("no confirmation should be sent when the charge fails")
	}
}

// ── DeclineLead ──

func TestDeclineLead_PassesToNextPlumber(t *testing.T) {
	h, res := dispatched(t)

	next, err := h.svc.DeclineLead(context.Background(), res.Offered.ID, 1001)
	if err != nil {
		t.Fatalf("DeclineLead: %v", err)
	}

	if next == nil || next.PlumberID != 2 {
		t.Fatalf("next = %+v, want lead for plumber 2", next)
	}
	if got := leadFor(t, h, 1).Status; got != models.LeadStatusDeclined {
		t.Errorf("declined lead = %q, want declined", got)
	}
	if _, ok := h.quotes.quotes[res.Offered.ID]; ok {
		t.Error("declined lead's quote should be evicted")
	}
	if got := leadFor(t, h, 2).Status; got != models.LeadStatusOffered {
		t.Errorf("next lead = %q, want offered", got)
	}
	if len(h.notifier.offers) != 2 || h.notifier.offers[1].Plumber.ID != 2 {
		t.Errorf("offers = %d, want second offer to plumber 2", len(h.notifier.offers))
	}
	if _, ok := h.quotes.quotes[next.ID]; !ok {
		t.Error("next lead's quote should be cached from its stored breakdown")
	}

	next, err = h.svc.DeclineLead(context.Background(), next.ID, 1002)
	if err != nil {
		t.Fatalf("second DeclineLead: %v", err)
	}
	if next != nil {
		t.Errorf("next = %+v, want nil once every plumber declined", next)
	}
	if h.store.jobs[7].Status != models.JobStatusUnmatched {
		t.Errorf("job status = %q, want unmatched", h.store.jobs[7].Status)
	}
}

func TestDeclineLead_SkipsPausedPlumber(t *testing.T) {
	h, res := dispatched(t)
	h.store.plumber(2).Status = models.PlumberStatusPaused

	next, err := h.svc.DeclineLead(context.Background(), res.Offered.ID, 1001)
	if err != nil {
		t.Fatalf("DeclineLead: %v", err)
	}

	if next != nil {
		t.Errorf("next = %+v, want nil", next)
	}
	if got := leadFor(t, h, 2).Status; got != models.LeadStatusSuperseded {
		t.Errorf("paused plumber's lead = %q, want superseded", got)
	}
	if h.store.jobs[7].Status != models.JobStatusUnmatched {
		t.Errorf("job status = %q, want unmatched", h.store.jobs[7].Status)
	}
}

// ── ExpireOffers ──

func TestExpireOffers(t *testing.T) {
	h, _ := dispatched(t)

	n, err := h.svc.ExpireOffers(context.Background())
	if err != nil || n != 0 {
		t.Fatalf("before deadline: n=%d err=%v, want 0", n, err)
	}

	h.clock.t = start.Add(2*time.Hour + time.Second)

	n, err = h.svc.ExpireOffers(context.Background())
	if err != nil {
		t.Fatalf("ExpireOffers: %v", err)
	}
	if n != 1 {
		t.Errorf("expired = %d, want 1", n)
	}

	first := leadFor(t, h, 1)
	if first.Status != models.LeadStatusExpired {
		t.Errorf("first lead = %q, want expired", first.Status)
	}
	if _, ok := h.quotes.quotes[first.ID]; ok {
		t.Error("expired lead's quote should be evicted")
	}
	second := leadFor(t, h, 2)
	if second.Status != models.LeadStatusOffered {
		t.Errorf("second lead = %q, want offered", second.Status)
	}
	if second.ExpiresAt == nil || !second.ExpiresAt.Equal(h.clock.t.Add(2*time.Hour)) {
		t.Errorf("second lead expires at %v, want a fresh window", second.ExpiresAt)
	}
	if len(h.notifier.expired) != 1 || h.notifier.expired[0].Plumber.ID != 1 {
		t.Errorf("expiry notices = %+v, want one to plumber 1", h.notifier.expired)
	}
}

func TestExpireOffers_SkipsWhenLocked(t *testing.T) {
	h, _ := dispatched(t)
	h.clock.t = start.Add(3 * time.Hour)
	h.locker.held[dispatch.ExpiryLock] = true

	n, err := h.svc.ExpireOffers(context.Background())
	if err != nil || n != 0 {
		t.Fatalf("n=%d err=%v, want 0 and no error", n, err)
	}
	if got := leadFor(t, h, 1).Status; got != models.LeadStatusOffered {
		t.Errorf("lead = %q, want still offered", got)
	}
}

// ── Quote ──

func TestQuote_FallsBackToStoredBreakdown(t *testing.T) {
	h, res := dispatched(t)

	cached, err := h.svc.Quote(context.Background(), res.Offered)
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}

	delete(h.quotes.quotes, res.Offered.ID)
	lead, _ := h.store.GetLead(context.Background(), res.Offered.ID)

	stored, err := h.svc.Quote(context.Background(), lead)
	if err != nil {
		t.Fatalf("Quote from breakdown: %v", err)
	}

	if stored.CustomerTotal != cached.CustomerTotal || stored.FinderFee != cached.FinderFee {
		t.Errorf("stored quote %v/%v differs from cached %v/%v",
			stored.CustomerTotal, stored.FinderFee, cached.CustomerTotal, cached.FinderFee)
	}

	lead.Breakdown = nil
	if _, err := h.svc.Quote(context.Background(), lead); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
