package workflow

import (
	"context"
	"errors"
	"io"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/langerlad/bulk-ip-app/internal/domain"
	"github.com/langerlad/bulk-ip-app/internal/draft"
	"github.com/langerlad/bulk-ip-app/internal/reputation"
)

type fakeClient struct {
	initErr     error
	checkErr    error
	rawErr      error
	downloadErr error
	results     *domain.ResultSet
	rawContent  string
	checkGate   chan struct{}

	initCalls     atomic.Int32
	checkCalls    atomic.Int32
	rawCalls      atomic.Int32
	downloadCalls atomic.Int32

	mu          sync.Mutex
	lastRequest domain.SubmissionRequest
	lastRawIPs  []string
	lastExport  string
}

func (f *fakeClient) Initialize(context.Context) (*reputation.InitResult, error) {
	f.initCalls.Add(1)
	if f.initErr != nil {
		return nil, f.initErr
	}
	return &reputation.InitResult{
		ClientIP: "203.0.113.7",
		APIUsage: &domain.ApiUsageStatus{TotalLimit: 1000, RemainingRequests: 900},
	}, nil
}

func (f *fakeClient) CheckBatch(_ context.Context, request domain.SubmissionRequest) (*domain.ResultSet, error) {
	f.checkCalls.Add(1)
	f.mu.Lock()
	f.lastRequest = request
	f.mu.Unlock()

	if f.checkGate != nil {
		<-f.checkGate
	}
	if f.checkErr != nil {
		return nil, f.checkErr
	}
	if f.results != nil {
		return f.results, nil
	}

	data := make([]domain.ReputationRecord, 0, len(request.IPs))
	for _, ip := range request.IPs {
		data = append(data, domain.ReputationRecord{IPAddress: ip})
	}
	return &domain.ResultSet{Data: data, CSV: request.CSV, HTML: request.HTML}, nil
}

func (f *fakeClient) FetchRawText(_ context.Context, ips []string, obfuscate bool) (string, error) {
	f.rawCalls.Add(1)
	f.mu.Lock()
	f.lastRawIPs = ips
	f.mu.Unlock()
	if f.rawErr != nil {
		return "", f.rawErr
	}
	if !obfuscate {
		return "", errors.New("expected obfuscated raw text")
	}
	return f.rawContent, nil
}

func (f *fakeClient) DownloadExport(_ context.Context, fileType reputation.ExportType, filename string) (*reputation.Export, error) {
	f.downloadCalls.Add(1)
	f.mu.Lock()
	f.lastExport = filename
	f.mu.Unlock()
	if f.downloadErr != nil {
		return nil, f.downloadErr
	}
	return &reputation.Export{
		Type: fileType,
		Name: fileType.LocalName(),
		Body: io.NopCloser(strings.NewReader("ip,score\n")),
	}, nil
}

func newReadyController(t *testing.T, client *fakeClient) (*Controller, *draft.MemoryStore) {
	t.Helper()

	store := draft.NewMemoryStore(time.Hour)
	controller := NewController(client, store, draft.Key("session"), nil)
	if err := controller.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize returned error: %v", err)
	}
	return controller, store
}

func noticeMessages(notices []Notice) []string {
	out := make([]string, 0, len(notices))
	for _, notice := range notices {
		out = append(out, notice.Message)
	}
	return out
}

func TestInitializeReachesReady(t *testing.T) {
	controller, _ := newReadyController(t, &fakeClient{})

	snapshot := controller.Snapshot()
	if snapshot.State != StateReady {
		t.Fatalf("state = %s, want ready", snapshot.State)
	}
	if snapshot.ClientIP != "203.0.113.7" || snapshot.APIUsage.RemainingRequests != 900 {
		t.Fatalf("unexpected snapshot %+v", snapshot)
	}
}

func TestInitializeFailureIsFatal(t *testing.T) {
	client := &fakeClient{initErr: &reputation.ConnectionError{Message: "Could not connect to the server"}}
	controller := NewController(client, draft.NewMemoryStore(time.Hour), "k", nil)

	if err := controller.Initialize(context.Background()); err == nil {
		t.Fatal("expected Initialize to fail")
	}

	snapshot := controller.Snapshot()
	if snapshot.State != StateSubmissionError || snapshot.Failure == nil || !snapshot.Failure.Fatal {
		t.Fatalf("unexpected snapshot %+v", snapshot)
	}
	if snapshot.Failure.Message != "Could not connect to the server" {
		t.Fatalf("failure message = %q", snapshot.Failure.Message)
	}
	if got := noticeMessages(controller.TakeNotices()); !reflect.DeepEqual(got, []string{"Could not connect to the server"}) {
		t.Fatalf("notices = %v", got)
	}
	if client.initCalls.Load() != 1 {
		t.Fatalf("init called %d times, want exactly 1", client.initCalls.Load())
	}

	if _, err := controller.Submit(context.Background(), Form{IPs: "1.1.1.1"}); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("submit after fatal failure returned %v", err)
	}
}

func TestSubmitEmptyMakesNoNetworkCall(t *testing.T) {
	client := &fakeClient{}
	controller, _ := newReadyController(t, client)

	for _, input := range []string{"", "   ", "\n\t\r\n"} {
		_, err := controller.Submit(context.Background(), Form{IPs: input})
		if !errors.Is(err, domain.ErrEmptySubmission) {
			t.Fatalf("Submit(%q) returned %v", input, err)
		}
	}

	if client.checkCalls.Load() != 0 {
		t.Fatalf("check called %d times, want 0", client.checkCalls.Load())
	}
	notices := noticeMessages(controller.TakeNotices())
	if len(notices) != 3 || notices[0] != "Please enter at least one IP address" {
		t.Fatalf("notices = %v", notices)
	}
	if controller.Snapshot().State != StateReady {
		t.Fatal("empty submit must leave the controller ready")
	}
}

func TestSubmitSuccess(t *testing.T) {
	client := &fakeClient{}
	controller, _ := newReadyController(t, client)

	results, err := controller.Submit(context.Background(), Form{IPs: "1.1.1.1\n1.1.1.1\n999.1.1.1\n8.8.8.8", CSV: true, Comments: true})
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if !reflect.DeepEqual(results.Addresses(), []string{"1.1.1.1", "8.8.8.8"}) {
		t.Fatalf("addresses = %v", results.Addresses())
	}

	client.mu.Lock()
	request := client.lastRequest
	client.mu.Unlock()
	if request.Text() != "1.1.1.1\n8.8.8.8\n999.1.1.1" || !request.CSV || request.HTML || !request.IncludeComments {
		t.Fatalf("unexpected request %+v", request)
	}

	snapshot := controller.Snapshot()
	if snapshot.State != StateResultsReady || !snapshot.ShowComments {
		t.Fatalf("unexpected snapshot %+v", snapshot)
	}
}

func TestSubmitValidationError(t *testing.T) {
	client := &fakeClient{checkErr: &reputation.ValidationError{
		InvalidIPs: []string{"999.1.1.1"},
		Message:    "Invalid IP addresses provided",
	}}
	controller, _ := newReadyController(t, client)

	_, err := controller.Submit(context.Background(), Form{IPs: "999.1.1.1"})
	var validationErr *reputation.ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}

	snapshot := controller.Snapshot()
	if snapshot.State != StateSubmissionError || snapshot.Failure.Fatal {
		t.Fatalf("unexpected snapshot %+v", snapshot)
	}
	if snapshot.Failure.Message != "Some IP addresses are invalid" {
		t.Fatalf("failure message = %q", snapshot.Failure.Message)
	}
	if !reflect.DeepEqual(snapshot.Failure.InvalidIPs, []string{"999.1.1.1"}) {
		t.Fatalf("invalid ips = %v", snapshot.Failure.InvalidIPs)
	}
	if got := noticeMessages(controller.TakeNotices()); !reflect.DeepEqual(got, []string{"Invalid IP addresses provided"}) {
		t.Fatalf("notices = %v", got)
	}
}

func TestSubmitAPIError(t *testing.T) {
	client := &fakeClient{checkErr: &reputation.APIError{Op: "check", Status: 500, Message: "An error occurred while processing your request"}}
	controller, _ := newReadyController(t, client)

	if _, err := controller.Submit(context.Background(), Form{IPs: "1.1.1.1"}); err == nil {
		t.Fatal("expected Submit to fail")
	}

	snapshot := controller.Snapshot()
	if snapshot.Failure == nil || snapshot.Failure.Message != "An error occurred while processing your request" || len(snapshot.Failure.InvalidIPs) != 0 {
		t.Fatalf("unexpected failure %+v", snapshot.Failure)
	}
}

func TestSubmitCollapsesDuplicatesAndRejectsOverlap(t *testing.T) {
	gate := make(chan struct{})
	client := &fakeClient{checkGate: gate}
	controller, _ := newReadyController(t, client)

	form := Form{IPs: "1.1.1.1"}
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = controller.Submit(context.Background(), form)
		}(i)
	}

	deadline := time.Now().Add(2 * time.Second)
	for controller.Snapshot().State != StateSubmitting {
		if time.Now().After(deadline) {
			t.Fatal("submission never started")
		}
		time.Sleep(time.Millisecond)
	}

	if _, err := controller.Submit(context.Background(), Form{IPs: "8.8.8.8"}); !errors.Is(err, ErrBusy) {
		t.Fatalf("overlapping submit returned %v, want ErrBusy", err)
	}

	close(gate)
	wg.Wait()

	for i, err := range errs {
		if err != nil && !errors.Is(err, ErrInvalidState) {
			t.Fatalf("submit %d returned %v", i, err)
		}
	}
	if calls := client.checkCalls.Load(); calls != 1 {
		t.Fatalf("check called %d times, want 1", calls)
	}
}

func TestDraftRoundTrip(t *testing.T) {
	client := &fakeClient{}
	store := draft.NewMemoryStore(time.Hour)
	key := draft.Key("browser-1")

	first := NewController(client, store, key, nil)
	if err := first.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize returned error: %v", err)
	}
	if err := first.EditDraft(context.Background(), "1.1.1.1\n8.8."); err != nil {
		t.Fatalf("EditDraft returned error: %v", err)
	}
	if err := first.EditDraft(context.Background(), "1.1.1.1\n8.8.8.8"); err != nil {
		t.Fatalf("EditDraft returned error: %v", err)
	}

	second := NewController(client, store, key, nil)
	if err := second.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize returned error: %v", err)
	}
	if got := second.Snapshot().Draft; got != "1.1.1.1\n8.8.8.8" {
		t.Fatalf("restored draft = %q", got)
	}

	if err := second.Close(context.Background()); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}

	third := NewController(client, store, key, nil)
	if err := third.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize returned error: %v", err)
	}
	if got := third.Snapshot().Draft; got != "" {
		t.Fatalf("draft after Close = %q, want empty", got)
	}
}

func TestEditDraftRequiresReady(t *testing.T) {
	controller := NewController(&fakeClient{}, draft.NewMemoryStore(time.Hour), "k", nil)
	if err := controller.EditDraft(context.Background(), "1.1.1.1"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("EditDraft before Initialize returned %v", err)
	}
}

func TestToggleCommentsIsPerRecord(t *testing.T) {
	controller, _ := newReadyController(t, &fakeClient{})
	if _, err := controller.ToggleComments(0); !errors.Is(err, ErrNoResults) {
		t.Fatalf("toggle without results returned %v", err)
	}

	if _, err := controller.Submit(context.Background(), Form{IPs: "1.1.1.1\n8.8.8.8", Comments: true}); err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}

	open, err := controller.ToggleComments(1)
	if err != nil || !open {
		t.Fatalf("ToggleComments(1) = %v, %v", open, err)
	}
	if visible := controller.Snapshot().Visible; visible[0] || !visible[1] {
		t.Fatalf("visibility = %v", visible)
	}
	if open, _ := controller.ToggleComments(1); open {
		t.Fatal("second toggle should close the panel")
	}
	if _, err := controller.ToggleComments(2); err == nil {
		t.Fatal("out of range toggle should fail")
	}
}

func TestViewRaw(t *testing.T) {
	client := &fakeClient{rawContent: "1(.)1(.)1(.)1"}
	controller, _ := newReadyController(t, client)
	if _, err := controller.Submit(context.Background(), Form{IPs: "1.1.1.1"}); err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}

	var opened string
	if err := controller.ViewRaw(context.Background(), func(content string) error {
		opened = content
		return nil
	}); err != nil {
		t.Fatalf("ViewRaw returned error: %v", err)
	}
	if opened != "1(.)1(.)1(.)1" {
		t.Fatalf("opened content = %q", opened)
	}
	if snapshot := controller.Snapshot(); snapshot.State != StateResultsReady || snapshot.LastSide != SideRawTextRequested {
		t.Fatalf("unexpected snapshot %+v", snapshot)
	}

	err := controller.ViewRaw(context.Background(), func(string) error { return errors.New("window.open returned null") })
	if !errors.Is(err, ErrPopupBlocked) {
		t.Fatalf("expected ErrPopupBlocked, got %v", err)
	}
	if got := noticeMessages(controller.TakeNotices()); !reflect.DeepEqual(got, []string{"Pop-up was blocked. Please allow pop-ups for this site."}) {
		t.Fatalf("notices = %v", got)
	}

	client.rawErr = &reputation.APIError{Op: "raw-text", Status: 500, Message: "Could not generate raw text"}
	if err := controller.ViewRaw(context.Background(), func(string) error { return nil }); err == nil {
		t.Fatal("expected ViewRaw to fail")
	}
	if got := noticeMessages(controller.TakeNotices()); !reflect.DeepEqual(got, []string{"Could not generate raw text"}) {
		t.Fatalf("notices = %v", got)
	}
}

func TestDownloadWithoutFilenameSkipsServer(t *testing.T) {
	client := &fakeClient{}
	controller, _ := newReadyController(t, client)
	if _, err := controller.Submit(context.Background(), Form{IPs: "1.1.1.1", CSV: true}); err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}

	if _, err := controller.Download(context.Background(), reputation.ExportCSV); !errors.Is(err, ErrNoExport) {
		t.Fatalf("Download returned %v, want ErrNoExport", err)
	}
	if client.downloadCalls.Load() != 0 {
		t.Fatal("server must not be contacted without a filename")
	}
	want := []string{"No CSV file available. Please regenerate the report with CSV option enabled."}
	if got := noticeMessages(controller.TakeNotices()); !reflect.DeepEqual(got, want) {
		t.Fatalf("notices = %v", got)
	}
}

func TestDownload(t *testing.T) {
	name := "report_20261019.csv"
	client := &fakeClient{results: &domain.ResultSet{
		Data:        []domain.ReputationRecord{{IPAddress: "1.1.1.1"}},
		CSV:         true,
		CSVFilename: &name,
	}}
	controller, _ := newReadyController(t, client)
	if _, err := controller.Submit(context.Background(), Form{IPs: "1.1.1.1", CSV: true}); err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}

	export, err := controller.Download(context.Background(), reputation.ExportCSV)
	if err != nil {
		t.Fatalf("Download returned error: %v", err)
	}
	defer export.Body.Close()
	if export.Name != "ip_report.csv" || client.lastExport != name {
		t.Fatalf("unexpected export %+v (requested %q)", export, client.lastExport)
	}
	if controller.Snapshot().LastSide != SideExportRequested {
		t.Fatal("expected export side action to be recorded")
	}

	client.downloadErr = &reputation.NotFoundError{FileType: "csv", Filename: name, Message: "Could not download CSV file. Please try again."}
	if _, err := controller.Download(context.Background(), reputation.ExportCSV); err == nil {
		t.Fatal("expected Download to fail")
	}
	want := []string{"Could not download CSV file. Please try again."}
	if got := noticeMessages(controller.TakeNotices()); !reflect.DeepEqual(got, want) {
		t.Fatalf("notices = %v", got)
	}
}

func TestRequireResults(t *testing.T) {
	controller, _ := newReadyController(t, &fakeClient{})

	if _, err := controller.RequireResults(); !errors.Is(err, ErrNoResults) {
		t.Fatalf("RequireResults returned %v", err)
	}
	want := []string{"No results to display. Please submit the form again."}
	if got := noticeMessages(controller.TakeNotices()); !reflect.DeepEqual(got, want) {
		t.Fatalf("notices = %v", got)
	}
}

func TestManagerReusesControllers(t *testing.T) {
	manager := NewManager(&fakeClient{}, draft.NewMemoryStore(time.Hour), draft.Key, time.Hour, nil)

	a := manager.Controller("a")
	if manager.Controller("a") != a {
		t.Fatal("expected the same controller for the same session")
	}
	if manager.Controller("b") == a {
		t.Fatal("sessions must not share controllers")
	}
	if manager.Len() != 2 {
		t.Fatalf("Len = %d, want 2", manager.Len())
	}

	manager.Drop("a")
	if _, ok := manager.Lookup("a"); ok {
		t.Fatal("dropped session still present")
	}
}
