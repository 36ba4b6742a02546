package analysis

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	repos "github.com/yungbote/contractlens-backend/internal/data/repos/contracts"
	"github.com/yungbote/contractlens-backend/internal/data/repos/testutil"
	"github.com/yungbote/contractlens-backend/internal/domain/contracts"
	"github.com/yungbote/contractlens-backend/internal/modules/analysis/extractor"
	"github.com/yungbote/contractlens-backend/internal/modules/analysis/steps"
	errs "github.com/yungbote/contractlens-backend/internal/pkg/errors"
	"github.com/yungbote/contractlens-backend/internal/platform/dbctx"
	"github.com/yungbote/contractlens-backend/internal/platform/filestore"
)

type modelReply func(user string) (map[string]any, error)

// scriptedModel answers by schema name and records every call.
type scriptedModel struct {
	mu      sync.Mutex
	replies map[string]modelReply
	calls   map[string]int
	users   map[string][]string
}

func newScriptedModel() *scriptedModel {
	return &scriptedModel{replies: map[string]modelReply{}, calls: map[string]int{}, users: map[string][]string{}}
}

func (m *scriptedModel) on(schema string, fn modelReply) { m.replies[schema] = fn }

func (m *scriptedModel) GenerateJSON(_ context.Context, _ string, user string, schemaName string, _ map[string]any) (map[string]any, error) {
	m.mu.Lock()
	m.calls[schemaName]++
	m.users[schemaName] = append(m.users[schemaName], user)
	fn := m.replies[schemaName]
	m.mu.Unlock()
	if fn == nil {
		return nil, errors.New("no reply scripted for " + schemaName)
	}
	return fn(user)
}

func (m *scriptedModel) count(schema string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[schema]
}

type recordedStatus struct {
	from, to contracts.DocumentStatus
}

type recordingNotifier struct {
	mu       sync.Mutex
	statuses []recordedStatus
	assessed int
	amended  int
}

func (n *recordingNotifier) StatusChanged(_ context.Context, doc *contracts.Document, from contracts.DocumentStatus) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.statuses = append(n.statuses, recordedStatus{from: from, to: doc.Status})
}

func (n *recordingNotifier) ClausesAssessed(context.Context, uuid.UUID, int, int, int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.assessed++
}

func (n *recordingNotifier) AmendmentsGenerated(_ context.Context, _ uuid.UUID, count int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.amended += count
}

type fixture struct {
	db     *gorm.DB
	model  *scriptedModel
	notify *recordingNotifier
	orch   *Orchestrator
	docs   repos.DocumentRepo
	clause repos.ClauseRepo
	amend  repos.AmendmentRepo
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	store, err := filestore.NewLocal(log, t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	f := &fixture{
		db:     db,
		model:  newScriptedModel(),
		notify: &recordingNotifier{},
		docs:   repos.NewDocumentRepo(db, log),
		clause: repos.NewClauseRepo(db, log),
		amend:  repos.NewAmendmentRepo(db, log),
	}
	f.orch, err = New(Deps{
		DB:         db,
		Log:        log,
		Stages:     steps.NewStages(f.model, log),
		Extractor:  extractor.New(log, store, nil, 1<<20),
		Files:      store,
		Documents:  f.docs,
		Clauses:    f.clause,
		Amendments: f.amend,
		Notify:     f.notify,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return f
}

func (f *fixture) scriptHappyParse() {
	f.model.on(steps.StageDocumentAnalysis, func(string) (map[string]any, error) {
		return map[string]any{
			"summary":            "Services agreement between Acme and Globex.",
			"contract_type":      "services",
			"parties":            []any{"Acme", "Globex"},
			"effective_date":     "2024-01-15",
			"risk_rating":        "HIGH",
			"overall_assessment": "One-sided liability.",
		}, nil
	})
	f.model.on(steps.StageClauseExtraction, func(string) (map[string]any, error) {
		return map[string]any{"clauses": []any{
			map[string]any{"clause_type": "liability", "title": "Liability", "text": "Supplier liability is unlimited.", "section_number": "7"},
			"not a clause",
			map[string]any{"clause_type": "Governing-Law", "title": "Law", "text": "Delaware law governs."},
			map[string]any{"clause_type": "payment", "title": "Fees"},
		}}, nil
	})
}

func (f *fixture) reload(t *testing.T, id uuid.UUID) *contracts.Document {
	t.Helper()
	doc, err := f.docs.GetByID(dbctx.Context{Ctx: context.Background()}, id)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	return doc
}

func upload(name, body string) Upload {
	return Upload{Filename: name, Body: strings.NewReader(body)}
}

func TestIngestTruncatesLongSource(t *testing.T) {
	f := newFixture(t)
	f.model.on(steps.StageDocumentAnalysis, func(string) (map[string]any, error) {
		return map[string]any{"summary": "Long lease.", "contract_type": "lease", "risk_rating": "low"}, nil
	})
	f.model.on(steps.StageClauseExtraction, func(string) (map[string]any, error) {
		return map[string]any{"clauses": []any{
			map[string]any{"clause_type": "termination", "title": "Termination", "text": "Either party may terminate on 30 days notice."},
		}}, nil
	})
	ctx := context.Background()

	var b strings.Builder
	for b.Len() < 60000 {
		b.WriteString("§ Either party may terminate on 30 days notice. ")
	}
	source := b.String()

	doc, err := f.orch.Ingest(ctx, upload("lease.txt", source))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if doc.Status != contracts.DocumentParsed {
		t.Fatalf("status = %s, want parsed", doc.Status)
	}
	if !doc.HasText() {
		t.Fatalf("raw text not stored")
	}
	raw := *doc.RawText
	if !strings.HasSuffix(raw, steps.TruncatedMarker) {
		t.Fatalf("stored text does not end with the truncation marker")
	}
	if n, want := utf8.RuneCountInString(raw), steps.MaxInputRunes+utf8.RuneCountInString(steps.TruncatedMarker); n != want {
		t.Fatalf("stored text has %d runes, want %d", n, want)
	}
	if !strings.HasPrefix(source, strings.TrimSuffix(raw, steps.TruncatedMarker)) {
		t.Fatalf("stored text is not a prefix of the source")
	}
	if prompt := f.model.users[steps.StageDocumentAnalysis][0]; !strings.Contains(prompt, steps.TruncatedMarker) {
		t.Fatalf("analyzer did not receive the truncated text")
	}

	clauses, err := f.clause.ListByDocument(dbctx.Context{Ctx: ctx}, doc.ID, repos.ClauseFilter{})
	if err != nil {
		t.Fatalf("ListByDocument: %v", err)
	}
	if len(clauses) != 1 || clauses[0].Category != contracts.ClauseTermination {
		t.Fatalf("clauses: %+v", clauses)
	}
}

func TestIngestParsesDocument(t *testing.T) {
	f := newFixture(t)
	f.scriptHappyParse()
	ctx := context.Background()

	doc, err := f.orch.Ingest(ctx, upload("msa.txt", "MASTER SERVICES AGREEMENT\r\n7. Supplier liability is unlimited."))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if doc.Status != contracts.DocumentParsed {
		t.Fatalf("status = %s, want parsed", doc.Status)
	}
	if doc.Title != "msa.txt" || doc.FileExt != "txt" || doc.SizeBytes == 0 {
		t.Fatalf("upload metadata: %+v", doc)
	}
	if !doc.HasText() || !strings.Contains(*doc.RawText, "Supplier liability") {
		t.Fatalf("raw text not stored")
	}
	if doc.ContractType != contracts.ContractTypeService || doc.RiskRating == nil || *doc.RiskRating != contracts.RiskRatingHigh {
		t.Fatalf("analysis fields: type=%s rating=%v", doc.ContractType, doc.RiskRating)
	}
	if doc.EffectiveDate == nil || doc.AnalyzedAt == nil || len(doc.Parties) != 2 {
		t.Fatalf("dates/parties not stored: %+v", doc)
	}

	clauses, err := f.clause.ListByDocument(dbctx.Context{Ctx: ctx}, doc.ID, repos.ClauseFilter{})
	if err != nil {
		t.Fatalf("ListByDocument: %v", err)
	}
	if len(clauses) != 2 {
		t.Fatalf("clauses = %d, want 2 (malformed items skipped)", len(clauses))
	}
	if clauses[0].Category != contracts.ClauseLiability || clauses[0].SectionLabel != "7" || clauses[0].Position != 0 {
		t.Fatalf("first clause: %+v", clauses[0])
	}
	if clauses[1].Category != contracts.ClauseGoverningLaw {
		t.Fatalf("second clause category = %s", clauses[1].Category)
	}
	for _, c := range clauses {
		if c.Assessed() {
			t.Fatalf("extracted clause must not carry risk yet")
		}
	}

	want := []recordedStatus{
		{"", contracts.DocumentUploaded},
		{contracts.DocumentUploaded, contracts.DocumentParsing},
		{contracts.DocumentParsing, contracts.DocumentParsed},
	}
	if len(f.notify.statuses) != len(want) {
		t.Fatalf("status events: %+v", f.notify.statuses)
	}
	for i := range want {
		if f.notify.statuses[i] != want[i] {
			t.Fatalf("status event %d = %+v, want %+v", i, f.notify.statuses[i], want[i])
		}
	}
}

func TestCreateDocumentRejectsUnsupportedFormat(t *testing.T) {
	f := newFixture(t)
	_, err := f.orch.CreateDocument(context.Background(), upload("photo.png", "x"))
	if !errors.Is(err, errs.ErrUnsupportedFormat) {
		t.Fatalf("err = %v, want unsupported format", err)
	}
	_, total, err := f.docs.List(dbctx.Context{Ctx: context.Background()}, repos.DocumentFilter{})
	if err != nil || total != 0 {
		t.Fatalf("nothing should be persisted: total=%d err=%v", total, err)
	}
}

func TestParseFailureKeepsEarlierOutput(t *testing.T) {
	f := newFixture(t)
	f.scriptHappyParse()
	f.model.on(steps.StageClauseExtraction, func(string) (map[string]any, error) {
		return nil, errors.New("model timeout")
	})
	ctx := context.Background()

	doc, err := f.orch.Ingest(ctx, upload("nda.txt", "Mutual NDA text."))
	if !steps.IsStageError(err) {
		t.Fatalf("err = %v, want stage error", err)
	}
	if doc == nil || doc.Status != contracts.DocumentError {
		t.Fatalf("document should be in error: %+v", doc)
	}
	if !strings.Contains(doc.LastError, "clause_extraction") {
		t.Fatalf("last error = %q", doc.LastError)
	}
	if !doc.HasText() || doc.RiskRating == nil {
		t.Fatalf("text and analysis from earlier stages must survive")
	}

	// Clause extraction never completed, so the document can be parsed again.
	f.scriptHappyParse()
	again, err := f.orch.Parse(ctx, doc.ID)
	if err != nil {
		t.Fatalf("re-parse: %v", err)
	}
	if again.Status != contracts.DocumentParsed || again.LastError != "" {
		t.Fatalf("re-parse result: status=%s last_error=%q", again.Status, again.LastError)
	}
}

func TestParseWhitespaceOnlyTextFails(t *testing.T) {
	f := newFixture(t)
	f.scriptHappyParse()
	doc, err := f.orch.Ingest(context.Background(), upload("blank.txt", " \n\t "))
	if !errors.Is(err, extractor.ErrNoText) {
		t.Fatalf("err = %v, want no text", err)
	}
	if doc.Status != contracts.DocumentError || doc.HasText() {
		t.Fatalf("blank upload: status=%s text=%v", doc.Status, doc.HasText())
	}
	if f.model.count(steps.StageDocumentAnalysis) != 0 {
		t.Fatalf("no model call expected for blank text")
	}
}

func TestParsePreconditions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	text := "body"

	parsed := testutil.SeedDocument(t, ctx, f.db, contracts.DocumentParsed, &text)
	if _, err := f.orch.Parse(ctx, parsed.ID); !errors.Is(err, errs.ErrPrecondition) {
		t.Fatalf("parse of parsed document: %v", err)
	}

	failed := testutil.SeedDocument(t, ctx, f.db, contracts.DocumentError, &text)
	testutil.SeedClause(t, ctx, f.db, failed.ID, 0, contracts.ClausePayment, "Pay in 30 days.")
	if _, err := f.orch.Parse(ctx, failed.ID); !errors.Is(err, errs.ErrPrecondition) {
		t.Fatalf("parse of errored document with clauses: %v", err)
	}

	if _, err := f.orch.Parse(ctx, uuid.New()); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("parse of missing document: %v", err)
	}
}

func TestReanalyze(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	text := "Lease of premises."
	doc := testutil.SeedDocument(t, ctx, f.db, contracts.DocumentParsed, &text)
	testutil.SeedClause(t, ctx, f.db, doc.ID, 0, contracts.ClausePayment, "Rent is due monthly.")

	f.model.on(steps.StageDocumentAnalysis, func(string) (map[string]any, error) {
		return map[string]any{"summary": "A lease.", "contract_type": "rental", "risk_rating": "low", "recommendations": []any{"Cap rent increases"}}, nil
	})
	got, err := f.orch.Reanalyze(ctx, doc.ID)
	if err != nil {
		t.Fatalf("Reanalyze: %v", err)
	}
	if got.Status != contracts.DocumentAnalyzed || got.ContractType != contracts.ContractTypeLease || got.Summary != "A lease." {
		t.Fatalf("reanalyzed: %+v", got)
	}
	if len(got.Recommendations) != 1 {
		t.Fatalf("recommendations: %v", got.Recommendations)
	}
	if f.model.count(steps.StageClauseExtraction) != 0 {
		t.Fatalf("reanalyze must not re-extract clauses")
	}
	if n, _ := f.clause.CountByDocument(dbctx.Context{Ctx: ctx}, doc.ID); n != 1 {
		t.Fatalf("clauses = %d, want 1", n)
	}

	// A failed run leaves ERROR, and ERROR with text can be analyzed again.
	f.model.on(steps.StageDocumentAnalysis, func(string) (map[string]any, error) { return nil, errors.New("boom") })
	if _, err := f.orch.Reanalyze(ctx, doc.ID); !steps.IsStageError(err) {
		t.Fatalf("err = %v, want stage error", err)
	}
	if st := f.reload(t, doc.ID).Status; st != contracts.DocumentError {
		t.Fatalf("status = %s, want error", st)
	}
	f.model.on(steps.StageDocumentAnalysis, func(string) (map[string]any, error) { return map[string]any{"summary": "ok"}, nil })
	if _, err := f.orch.Reanalyze(ctx, doc.ID); err != nil {
		t.Fatalf("reanalyze from error: %v", err)
	}

	uploaded := testutil.SeedDocument(t, ctx, f.db, contracts.DocumentUploaded, nil)
	if _, err := f.orch.Reanalyze(ctx, uploaded.ID); !errors.Is(err, errs.ErrPrecondition) {
		t.Fatalf("reanalyze without text: %v", err)
	}
	busy := testutil.SeedDocument(t, ctx, f.db, contracts.DocumentAnalyzing, &text)
	if _, err := f.orch.Reanalyze(ctx, busy.ID); !errors.Is(err, errs.ErrPrecondition) {
		t.Fatalf("reanalyze while analyzing: %v", err)
	}
}

func TestAssessRiskUsesDocumentSummary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	text := "body"
	doc := testutil.SeedDocument(t, ctx, f.db, contracts.DocumentParsed, &text)
	if err := f.docs.UpdateFields(dbctx.Context{Ctx: ctx}, doc.ID, map[string]interface{}{"summary": "Distribution deal for EMEA."}); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}
	c := testutil.SeedClause(t, ctx, f.db, doc.ID, 0, contracts.ClauseNonCompete, "No competing for 10 years.")

	f.model.on(steps.StageRiskAssessment, func(string) (map[string]any, error) {
		return map[string]any{"risk_level": "Critical", "risk_score": 1.7, "risk_factors": []any{"duration"}, "analysis": "Too long."}, nil
	})
	got, err := f.orch.AssessRisk(ctx, c.ID)
	if err != nil {
		t.Fatalf("AssessRisk: %v", err)
	}
	if *got.RiskLevel != contracts.RiskLevelCritical || *got.RiskScore != 1 {
		t.Fatalf("risk: level=%s score=%v", *got.RiskLevel, *got.RiskScore)
	}
	if !strings.Contains(f.model.users[steps.StageRiskAssessment][0], "Distribution deal for EMEA.") {
		t.Fatalf("document summary not passed as context")
	}
	stored, _ := f.clause.GetByID(dbctx.Context{Ctx: ctx}, c.ID)
	if !stored.Assessed() || stored.Analysis != "Too long." {
		t.Fatalf("risk not persisted: %+v", stored)
	}
	if st := f.reload(t, doc.ID).Status; st != contracts.DocumentParsed {
		t.Fatalf("assess must not change document status, got %s", st)
	}
}

func TestAssessAllRisksSkipsFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	text := "body"
	doc := testutil.SeedDocument(t, ctx, f.db, contracts.DocumentParsed, &text)
	ok1 := testutil.SeedClause(t, ctx, f.db, doc.ID, 0, contracts.ClausePayment, "Net 30.")
	bad := testutil.SeedClause(t, ctx, f.db, doc.ID, 1, contracts.ClauseLiability, "FAIL this clause.")
	ok2 := testutil.SeedClause(t, ctx, f.db, doc.ID, 2, contracts.ClauseWarranty, "As is.")

	f.model.on(steps.StageRiskAssessment, func(user string) (map[string]any, error) {
		if strings.Contains(user, "FAIL") {
			return nil, errors.New("rate limited")
		}
		return map[string]any{"risk_level": "medium", "risk_score": 0.4}, nil
	})

	var progress [][2]int
	res, err := f.orch.AssessAllRisks(ctx, doc.ID, WithProgress(func(done, total int) {
		progress = append(progress, [2]int{done, total})
	}))
	if err != nil {
		t.Fatalf("AssessAllRisks: %v", err)
	}
	if res.Assessed != 2 || res.Total != 3 || len(res.Failed) != 1 || res.Failed[0].ClauseID != bad.ID {
		t.Fatalf("result: %+v", res)
	}
	if len(progress) != 3 || progress[2] != [2]int{3, 3} {
		t.Fatalf("progress: %v", progress)
	}
	for _, id := range []uuid.UUID{ok1.ID, ok2.ID} {
		c, _ := f.clause.GetByID(dbctx.Context{Ctx: ctx}, id)
		if !c.Assessed() {
			t.Fatalf("clause %s not assessed", id)
		}
	}
	if f.notify.assessed != 1 {
		t.Fatalf("clauses assessed event not sent")
	}

	empty := testutil.SeedDocument(t, ctx, f.db, contracts.DocumentParsed, &text)
	if _, err := f.orch.AssessAllRisks(ctx, empty.ID); !errors.Is(err, errs.ErrPrecondition) {
		t.Fatalf("document without clauses: %v", err)
	}

	f.model.on(steps.StageRiskAssessment, func(string) (map[string]any, error) { return nil, errors.New("down") })
	res, err = f.orch.AssessAllRisks(ctx, doc.ID)
	if err != nil {
		t.Fatalf("all clauses failing should still report counts: %v", err)
	}
	if res.Assessed != 0 || res.Total != 3 || len(res.Failed) != 3 {
		t.Fatalf("all failed: %+v", res)
	}
	for _, fl := range res.Failed {
		if !strings.Contains(fl.Error, "down") {
			t.Fatalf("failure message lost: %+v", fl)
		}
	}
	cur, _ := f.docs.GetByID(dbctx.Context{Ctx: ctx}, doc.ID)
	if cur.Status != contracts.DocumentParsed {
		t.Fatalf("document status changed to %s", cur.Status)
	}
}

func TestGenerateAmendments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	text := "body"
	doc := testutil.SeedDocument(t, ctx, f.db, contracts.DocumentAnalyzed, &text)
	low := testutil.SeedAssessedClause(t, ctx, f.db, doc.ID, 0, contracts.ClausePayment, "Net 30.", contracts.RiskLevelLow, 0.1)
	high := testutil.SeedAssessedClause(t, ctx, f.db, doc.ID, 1, contracts.ClauseLiability, "Supplier   liability is unlimited.", contracts.RiskLevelHigh, 0.8)
	crit := testutil.SeedAssessedClause(t, ctx, f.db, doc.ID, 2, contracts.ClauseIndemnification, "Supplier indemnifies for all claims whatsoever.", contracts.RiskLevelCritical, 0.95)
	testutil.SeedClause(t, ctx, f.db, doc.ID, 3, contracts.ClauseNotices, "Notices by email.")
	medium := testutil.SeedAssessedClause(t, ctx, f.db, doc.ID, 4, contracts.ClauseAssignment, "Assignment requires prior written consent.", contracts.RiskLevelMedium, 0.5)

	f.model.on(steps.StageAmendmentBatch, func(user string) (map[string]any, error) {
		if strings.Contains(user, low.Text) {
			return nil, errors.New("low-risk clause must not be offered")
		}
		if strings.Contains(user, medium.Text) {
			return nil, errors.New("medium-risk clause must not be offered at high")
		}
		return map[string]any{"amendments": []any{
			map[string]any{"original_text": "Supplier liability is unlimited.", "proposed_text": "Liability is capped at fees paid.", "amendment_type": "replacement", "priority": "high"},
			map[string]any{"original_text": "all claims", "proposed_text": "Indemnity limited to third-party IP claims.", "negotiation_points": []any{"scope", "cap"}},
			map[string]any{"original_text": "unrelated", "proposed_text": "Add a mutual termination right.", "amendment_type": "addition"},
			map[string]any{"original_text": "no proposal"},
		}}, nil
	})

	res, err := f.orch.GenerateAmendments(ctx, doc.ID, contracts.RiskLevelHigh)
	if err != nil {
		t.Fatalf("GenerateAmendments: %v", err)
	}
	if res.ClausesConsidered != 2 || len(res.Amendments) != 3 || res.Message != "Generated 3 amendments" {
		t.Fatalf("result: considered=%d amendments=%d message=%q", res.ClausesConsidered, len(res.Amendments), res.Message)
	}
	a0, a1, a2 := res.Amendments[0], res.Amendments[1], res.Amendments[2]
	if a0.ClauseID == nil || *a0.ClauseID != high.ID || a0.Kind != contracts.AmendmentReplacement || a0.Priority != contracts.PriorityHigh {
		t.Fatalf("first amendment: %+v", a0)
	}
	if a1.ClauseID == nil || *a1.ClauseID != crit.ID || a1.Kind != contracts.AmendmentModification || len(a1.NegotiationPoints) != 2 {
		t.Fatalf("second amendment: %+v", a1)
	}
	if a2.ClauseID != nil || a2.Status != contracts.AmendmentDraft {
		t.Fatalf("third amendment: %+v", a2)
	}
	if f.notify.amended != 3 {
		t.Fatalf("amendments event count = %d", f.notify.amended)
	}
}

func TestAmendmentThresholdSelection(t *testing.T) {
	levels := []contracts.RiskLevel{contracts.RiskLevelLow, contracts.RiskLevelMedium, contracts.RiskLevelHigh, contracts.RiskLevelCritical}
	cases := []struct {
		threshold contracts.RiskLevel
		want      []contracts.RiskLevel
	}{
		{contracts.RiskLevelLow, levels},
		{contracts.RiskLevelMedium, levels[1:]},
		{contracts.RiskLevelHigh, levels[2:]},
		{contracts.RiskLevelCritical, levels[3:]},
	}
	for _, tc := range cases {
		t.Run(string(tc.threshold), func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			text := "body"
			doc := testutil.SeedDocument(t, ctx, f.db, contracts.DocumentAnalyzed, &text)
			byLevel := map[contracts.RiskLevel]*contracts.Clause{}
			for i, lvl := range levels {
				byLevel[lvl] = testutil.SeedAssessedClause(t, ctx, f.db, doc.ID, i, contracts.ClauseLiability, "Clause rated "+string(lvl)+".", lvl, 0.5)
			}
			f.model.on(steps.StageAmendmentBatch, func(string) (map[string]any, error) {
				return map[string]any{"amendments": []any{}}, nil
			})

			res, err := f.orch.GenerateAmendments(ctx, doc.ID, tc.threshold)
			if err != nil {
				t.Fatalf("GenerateAmendments: %v", err)
			}
			if res.ClausesConsidered != len(tc.want) {
				t.Fatalf("considered %d clauses, want %d", res.ClausesConsidered, len(tc.want))
			}
			prompt := f.model.users[steps.StageAmendmentBatch][0]
			selected := map[contracts.RiskLevel]bool{}
			for _, lvl := range tc.want {
				selected[lvl] = true
			}
			for lvl, c := range byLevel {
				if got := strings.Contains(prompt, c.Text); got != selected[lvl] {
					t.Fatalf("%s clause offered=%v at threshold %s", lvl, got, tc.threshold)
				}
			}
		})
	}
}

func TestGenerateAmendmentsWithoutQualifyingClauses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	text := "body"
	doc := testutil.SeedDocument(t, ctx, f.db, contracts.DocumentAnalyzed, &text)
	testutil.SeedAssessedClause(t, ctx, f.db, doc.ID, 0, contracts.ClausePayment, "Net 30.", contracts.RiskLevelMedium, 0.5)
	testutil.SeedClause(t, ctx, f.db, doc.ID, 1, contracts.ClauseLiability, "Unassessed.")

	res, err := f.orch.GenerateAmendments(ctx, doc.ID, contracts.RiskLevelHigh)
	if err != nil {
		t.Fatalf("GenerateAmendments: %v", err)
	}
	if res.Message != NoQualifyingClausesMessage || len(res.Amendments) != 0 || res.ClausesConsidered != 0 {
		t.Fatalf("result: %+v", res)
	}
	if f.model.count(steps.StageAmendmentBatch) != 0 {
		t.Fatalf("no model call expected")
	}

	if _, err := f.orch.GenerateAmendments(ctx, doc.ID, "severe"); !errors.Is(err, errs.ErrInvalidArgument) {
		t.Fatalf("bad threshold: %v", err)
	}
}

func TestGenerateAmendmentForClause(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	text := "body"
	doc := testutil.SeedDocument(t, ctx, f.db, contracts.DocumentAnalyzed, &text)
	c := testutil.SeedClause(t, ctx, f.db, doc.ID, 0, contracts.ClauseTermination, "Either party may terminate on 1 day notice.")

	f.model.on(steps.StageAmendmentSingle, func(user string) (map[string]any, error) {
		if !strings.Contains(user, "No risk analysis available") {
			return nil, errors.New("missing default risk analysis")
		}
		return map[string]any{"proposed_text": "Either party may terminate on 30 days notice.", "rationale": "Predictability."}, nil
	})
	a, err := f.orch.GenerateAmendmentForClause(ctx, c.ID)
	if err != nil {
		t.Fatalf("GenerateAmendmentForClause: %v", err)
	}
	if a.ClauseID == nil || *a.ClauseID != c.ID || a.DocumentID != doc.ID || a.OriginalText != c.Text || a.Status != contracts.AmendmentDraft {
		t.Fatalf("amendment: %+v", a)
	}

	f.model.on(steps.StageAmendmentSingle, func(string) (map[string]any, error) {
		return map[string]any{"amendments": []any{map[string]any{"rationale": "no text"}}}, nil
	})
	if _, err := f.orch.GenerateAmendmentForClause(ctx, c.ID); !steps.IsStageError(err) {
		t.Fatalf("empty proposal: %v", err)
	}
}

func TestUpdateAmendmentStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := testutil.SeedDocument(t, ctx, f.db, contracts.DocumentAnalyzed, nil)
	a := testutil.SeedAmendment(t, ctx, f.db, doc.ID, nil, contracts.AmendmentDraft)

	got, err := f.orch.UpdateAmendmentStatus(ctx, a.ID, "Approved")
	if err != nil || got.Status != contracts.AmendmentApproved {
		t.Fatalf("update: %+v %v", got, err)
	}
	if _, err := f.orch.UpdateAmendmentStatus(ctx, a.ID, "accepted"); !errors.Is(err, errs.ErrInvalidArgument) {
		t.Fatalf("unknown status: %v", err)
	}
	if _, err := f.orch.UpdateAmendmentStatus(ctx, uuid.New(), "rejected"); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("missing amendment: %v", err)
	}
}

func TestMarkAbandoned(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	stuck := testutil.SeedDocument(t, ctx, f.db, contracts.DocumentParsing, nil)
	if err := f.orch.MarkAbandoned(ctx, stuck.ID, "worker lost"); err != nil {
		t.Fatalf("MarkAbandoned: %v", err)
	}
	got := f.reload(t, stuck.ID)
	if got.Status != contracts.DocumentError || got.LastError != "worker lost" {
		t.Fatalf("abandoned: status=%s last_error=%q", got.Status, got.LastError)
	}

	done := testutil.SeedDocument(t, ctx, f.db, contracts.DocumentUploaded, nil)
	if err := f.orch.MarkAbandoned(ctx, done.ID, "x"); err != nil {
		t.Fatalf("MarkAbandoned on idle document: %v", err)
	}
	if st := f.reload(t, done.ID).Status; st != contracts.DocumentUploaded {
		t.Fatalf("idle document changed to %s", st)
	}
}

func TestQualifyingAndLinkClause(t *testing.T) {
	mk := func(text string, level *contracts.RiskLevel) *contracts.Clause {
		c := &contracts.Clause{ID: uuid.New(), Text: text}
		if level != nil {
			c.ApplyRisk(*level, 0.5, nil, nil, "", c.CreatedAt)
		}
		return c
	}
	lvl := func(l contracts.RiskLevel) *contracts.RiskLevel { return &l }
	clauses := []*contracts.Clause{
		mk("alpha beta", lvl(contracts.RiskLevelLow)),
		mk("gamma delta", lvl(contracts.RiskLevelMedium)),
		mk("gamma epsilon", lvl(contracts.RiskLevelCritical)),
		mk("zeta", nil),
	}
	if got := qualifying(clauses, contracts.RiskLevelMedium); len(got) != 2 {
		t.Fatalf("medium threshold selected %d", len(got))
	}
	if got := qualifying(clauses, contracts.RiskLevelLow); len(got) != 3 {
		t.Fatalf("low threshold selected %d (unassessed never qualify)", len(got))
	}

	sel := clauses[:3]
	if id := linkClause("  gamma\n delta ", sel); id == nil || *id != clauses[1].ID {
		t.Fatalf("exact match not linked")
	}
	if id := linkClause("gamma", sel); id != nil {
		t.Fatalf("ambiguous substring must not link")
	}
	if id := linkClause("epsilon", sel); id == nil || *id != clauses[2].ID {
		t.Fatalf("unique substring not linked")
	}
	if id := linkClause("", sel); id != nil {
		t.Fatalf("empty original must not link")
	}
}
