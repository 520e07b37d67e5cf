package knowledge

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	gormsqlite "github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"github.com/supportdesk/platform/internal/ai"
	"github.com/supportdesk/platform/internal/cache"
	"github.com/supportdesk/platform/internal/common"
	"github.com/supportdesk/platform/internal/models"
	"gorm.io/gorm"
)

type fakeGateway struct {
	chunks     []ai.ProcessedDocument
	processErr error

	pendencies []pendencyCall
	pendErr    error
}

type pendencyCall struct {
	question       string
	consultationID uint64
}

func (f *fakeGateway) ProcessDocument(ctx context.Context, req ai.ProcessRequest) ([]ai.ProcessedDocument, error) {
	_ = ctx
	_ = req
	if f.processErr != nil {
		return nil, f.processErr
	}
	return f.chunks, nil
}

func (f *fakeGateway) ReportPendency(ctx context.Context, question string, consultationID uint64) error {
	_ = ctx
	f.pendencies = append(f.pendencies, pendencyCall{question: question, consultationID: consultationID})
	return f.pendErr
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Category{},
		&models.Subcategory{},
		&models.Keyword{},
		&models.Document{},
		&models.ChatSession{},
		&models.Consultation{},
		&models.Response{},
		&models.Feedback{},
		&models.PendingTopic{},
		&models.IngestJob{},
	); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func newTestService(t *testing.T, db *gorm.DB, gw *fakeGateway) (*Service, *cache.Coordinator) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	answers := cache.NewCoordinator(rdb, time.Hour)
	return NewService(NewRepo(db), gw, answers), answers
}

func seedSubcategory(t *testing.T, db *gorm.DB) *models.Subcategory {
	t.Helper()
	cat := &models.Category{Name: "Cards"}
	if err := db.Create(cat).Error; err != nil {
		t.Fatalf("create category: %v", err)
	}
	sub := &models.Subcategory{Name: "Credit", CategoryID: cat.ID}
	if err := db.Create(sub).Error; err != nil {
		t.Fatalf("create subcategory: %v", err)
	}
	return sub
}

func TestIngestDocument_FanOutPersistsChunksAndKeywords(t *testing.T) {
	db := openTestDB(t)
	sub := seedSubcategory(t, db)
	gw := &fakeGateway{chunks: []ai.ProcessedDocument{
		{
			Title:         "Blocking a card, part 1",
			Description:   "first chunk",
			Embedding:     []float64{0.5, 0.5},
			SubcategoryID: sub.ID,
			Keywords:      []string{"Card", "Block"},
		},
		{
			Title:         "Blocking a card, part 2",
			SubcategoryID: sub.ID,
			Keywords:      []string{"card", "limit"},
		},
	}}
	svc, _ := newTestService(t, db, gw)

	created, err := svc.IngestDocument(context.Background(), IngestInput{
		Title:         "Blocking a card",
		Description:   "how to block",
		SubcategoryID: sub.ID,
	})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if created != 2 {
		t.Fatalf("expected 2 documents created, got %d", created)
	}

	var docs []models.Document
	if err := db.Preload("Keywords").Order("id").Find(&docs).Error; err != nil {
		t.Fatalf("load documents: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 document rows, got %d", len(docs))
	}
	if !docs[0].Active || docs[0].Embedding == nil {
		t.Fatalf("first chunk should be active with a stored embedding")
	}
	if docs[1].Embedding != nil {
		t.Fatalf("chunk without embedding must persist NULL")
	}

	// "Card" and "card" collapse to one lowercase keyword row
	var kwCount int64
	if err := db.Model(&models.Keyword{}).Count(&kwCount).Error; err != nil {
		t.Fatalf("count keywords: %v", err)
	}
	if kwCount != 3 {
		t.Fatalf("expected 3 distinct keywords (card, block, limit), got %d", kwCount)
	}
	if len(docs[0].Keywords) != 2 || len(docs[1].Keywords) != 2 {
		t.Fatalf("expected 2 keywords attached per chunk, got %d and %d", len(docs[0].Keywords), len(docs[1].Keywords))
	}
	for _, k := range docs[0].Keywords {
		if k.Word != "card" && k.Word != "block" {
			t.Fatalf("unexpected keyword %q", k.Word)
		}
	}
}

func TestIngestDocument_ClearsAnswerCache(t *testing.T) {
	db := openTestDB(t)
	sub := seedSubcategory(t, db)
	gw := &fakeGateway{chunks: []ai.ProcessedDocument{{Title: "chunk", SubcategoryID: sub.ID}}}
	svc, answers := newTestService(t, db, gw)

	key := cache.Key(sub.ID, "how do I block my card?")
	answers.Populate(context.Background(), key, &cache.AnswerPayload{Answer: "stale"})

	if _, err := svc.IngestDocument(context.Background(), IngestInput{
		Title:         "new doc",
		SubcategoryID: sub.ID,
	}); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	if _, hit := answers.Lookup(context.Background(), key); hit {
		t.Fatalf("cached answer must be gone after ingestion")
	}
}

func TestIngestDocument_UpstreamFailureKeepsCacheAndCreatesNothing(t *testing.T) {
	db := openTestDB(t)
	sub := seedSubcategory(t, db)
	gw := &fakeGateway{processErr: errors.New("processing service down")}
	svc, answers := newTestService(t, db, gw)

	key := cache.Key(sub.ID, "some cached question")
	answers.Populate(context.Background(), key, &cache.AnswerPayload{Answer: "still valid"})

	_, err := svc.IngestDocument(context.Background(), IngestInput{
		Title:         "doomed doc",
		SubcategoryID: sub.ID,
	})
	if err == nil || common.KindOf(err) != common.KindUpstream {
		t.Fatalf("expected upstream error, got %v", err)
	}

	var count int64
	if err := db.Model(&models.Document{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("failed ingestion must create no documents, got %d", count)
	}
	if _, hit := answers.Lookup(context.Background(), key); !hit {
		t.Fatalf("failed ingestion must not clear the cache")
	}
}

func TestUpdateAndDeleteDocument_ClearAnswerCache(t *testing.T) {
	db := openTestDB(t)
	sub := seedSubcategory(t, db)
	svc, answers := newTestService(t, db, &fakeGateway{})

	doc := &models.Document{Title: "doc", SubcategoryID: sub.ID, Active: true}
	if err := db.Create(doc).Error; err != nil {
		t.Fatalf("seed doc: %v", err)
	}

	key := cache.Key(sub.ID, "q")
	answers.Populate(context.Background(), key, &cache.AnswerPayload{Answer: "a"})

	title := "renamed"
	if _, err := svc.UpdateDocument(context.Background(), doc.ID, DocumentUpdate{Title: &title}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, hit := answers.Lookup(context.Background(), key); hit {
		t.Fatalf("update must clear the cache")
	}

	answers.Populate(context.Background(), key, &cache.AnswerPayload{Answer: "a"})
	if err := svc.DeleteDocument(context.Background(), doc.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, hit := answers.Lookup(context.Background(), key); hit {
		t.Fatalf("delete must clear the cache")
	}

	var got models.Document
	if err := db.First(&got, doc.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.Active {
		t.Fatalf("delete must deactivate, not remove")
	}
	if got.Title != "renamed" {
		t.Fatalf("update lost: title=%q", got.Title)
	}
}

func seedAnsweredConsultation(t *testing.T, db *gorm.DB, sub *models.Subcategory, question string) *models.Response {
	t.Helper()
	sess := &models.ChatSession{UserID: 1, StartedAt: time.Now()}
	if err := db.Create(sess).Error; err != nil {
		t.Fatalf("seed session: %v", err)
	}
	cons := &models.Consultation{SessionID: sess.ID, SubcategoryID: sub.ID, Question: question}
	if err := db.Create(cons).Error; err != nil {
		t.Fatalf("seed consultation: %v", err)
	}
	resp := &models.Response{ConsultationID: cons.ID, AnswerText: "some answer"}
	if err := db.Create(resp).Error; err != nil {
		t.Fatalf("seed response: %v", err)
	}
	return resp
}

func TestCreateFeedback_NegativeReportsPendency(t *testing.T) {
	db := openTestDB(t)
	sub := seedSubcategory(t, db)
	gw := &fakeGateway{}
	svc, _ := newTestService(t, db, gw)
	resp := seedAnsweredConsultation(t, db, sub, "why was I charged twice?")

	helpful := false
	fb, err := svc.CreateFeedback(context.Background(), FeedbackInput{ResponseID: resp.ID, Helpful: &helpful})
	if err != nil {
		t.Fatalf("feedback: %v", err)
	}
	if fb.Helpful {
		t.Fatalf("expected helpful=false persisted")
	}
	if len(gw.pendencies) != 1 {
		t.Fatalf("expected one pendency report, got %d", len(gw.pendencies))
	}
	if gw.pendencies[0].question != "why was I charged twice?" {
		t.Fatalf("pendency carries wrong question: %q", gw.pendencies[0].question)
	}
}

func TestCreateFeedback_PositiveDoesNotReport(t *testing.T) {
	db := openTestDB(t)
	sub := seedSubcategory(t, db)
	gw := &fakeGateway{}
	svc, _ := newTestService(t, db, gw)
	resp := seedAnsweredConsultation(t, db, sub, "q")

	helpful := true
	if _, err := svc.CreateFeedback(context.Background(), FeedbackInput{ResponseID: resp.ID, Helpful: &helpful}); err != nil {
		t.Fatalf("feedback: %v", err)
	}
	if len(gw.pendencies) != 0 {
		t.Fatalf("positive feedback must not report a pendency")
	}
}

func TestCreateFeedback_PendencyFailureIsNonFatal(t *testing.T) {
	db := openTestDB(t)
	sub := seedSubcategory(t, db)
	gw := &fakeGateway{pendErr: errors.New("analysis service down")}
	svc, _ := newTestService(t, db, gw)
	resp := seedAnsweredConsultation(t, db, sub, "q")

	helpful := false
	if _, err := svc.CreateFeedback(context.Background(), FeedbackInput{ResponseID: resp.ID, Helpful: &helpful}); err != nil {
		t.Fatalf("pendency failure must not fail the feedback: %v", err)
	}

	var count int64
	if err := db.Model(&models.Feedback{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected the feedback row saved, got %d", count)
	}
}

func TestCreateFeedback_Validation(t *testing.T) {
	db := openTestDB(t)
	svc, _ := newTestService(t, db, &fakeGateway{})

	helpful := true
	if _, err := svc.CreateFeedback(context.Background(), FeedbackInput{ResponseID: 1}); common.KindOf(err) != common.KindInvalidInput {
		t.Fatalf("missing helpful: expected invalid-input, got %v", err)
	}
	if _, err := svc.CreateFeedback(context.Background(), FeedbackInput{Helpful: &helpful}); common.KindOf(err) != common.KindInvalidInput {
		t.Fatalf("missing response_id: expected invalid-input, got %v", err)
	}
	if _, err := svc.CreateFeedback(context.Background(), FeedbackInput{ResponseID: 999, Helpful: &helpful}); common.KindOf(err) != common.KindNotFound {
		t.Fatalf("unknown response: expected not-found, got %v", err)
	}
}

func TestUpdateSubcategory(t *testing.T) {
	db := openTestDB(t)
	sub := seedSubcategory(t, db)
	svc, _ := newTestService(t, db, &fakeGateway{})

	other := &models.Category{Name: "Accounts"}
	if err := db.Create(other).Error; err != nil {
		t.Fatalf("create category: %v", err)
	}

	got, err := svc.UpdateSubcategory(context.Background(), sub.ID, "Debit", other.ID)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Name != "Debit" || got.CategoryID != other.ID {
		t.Fatalf("unexpected subcategory after update: %+v", got)
	}

	if _, err := svc.UpdateSubcategory(context.Background(), sub.ID, "  ", 0); common.KindOf(err) != common.KindInvalidInput {
		t.Fatalf("blank name: expected invalid-input, got %v", err)
	}
	if _, err := svc.UpdateSubcategory(context.Background(), 999, "x", 0); common.KindOf(err) != common.KindNotFound {
		t.Fatalf("unknown subcategory: expected not-found, got %v", err)
	}
	if _, err := svc.UpdateSubcategory(context.Background(), sub.ID, "x", 999); common.KindOf(err) != common.KindNotFound {
		t.Fatalf("unknown target category: expected not-found, got %v", err)
	}
}

func TestKeywordCRUD(t *testing.T) {
	db := openTestDB(t)
	svc, _ := newTestService(t, db, &fakeGateway{})

	k, err := svc.CreateKeyword(context.Background(), "  Fraud  ")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if k.Word != "fraud" {
		t.Fatalf("expected normalized word, got %q", k.Word)
	}

	if _, err := svc.CreateKeyword(context.Background(), "FRAUD"); common.KindOf(err) != common.KindConflict {
		t.Fatalf("duplicate: expected conflict, got %v", err)
	}

	upd, err := svc.UpdateKeyword(context.Background(), k.ID, "Chargeback")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if upd.Word != "chargeback" {
		t.Fatalf("expected normalized update, got %q", upd.Word)
	}

	if err := svc.DeleteKeyword(context.Background(), k.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := svc.DeleteKeyword(context.Background(), k.ID); common.KindOf(err) != common.KindNotFound {
		t.Fatalf("second delete: expected not-found, got %v", err)
	}

	kws, err := svc.ListKeywords(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(kws) != 0 {
		t.Fatalf("expected no keywords left, got %d", len(kws))
	}
}

func TestListFeedbacks_NewestFirst(t *testing.T) {
	db := openTestDB(t)
	sub := seedSubcategory(t, db)
	svc, _ := newTestService(t, db, &fakeGateway{})

	helpful := true
	first := seedAnsweredConsultation(t, db, sub, "q1")
	second := seedAnsweredConsultation(t, db, sub, "q2")
	if _, err := svc.CreateFeedback(context.Background(), FeedbackInput{ResponseID: first.ID, Helpful: &helpful}); err != nil {
		t.Fatalf("feedback 1: %v", err)
	}
	if _, err := svc.CreateFeedback(context.Background(), FeedbackInput{ResponseID: second.ID, Helpful: &helpful}); err != nil {
		t.Fatalf("feedback 2: %v", err)
	}

	fbs, err := svc.ListFeedbacks(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(fbs) != 2 {
		t.Fatalf("expected 2 feedbacks, got %d", len(fbs))
	}
	if fbs[0].ResponseID != second.ID {
		t.Fatalf("expected newest feedback first, got response %d", fbs[0].ResponseID)
	}
}

func TestPendingTopic_StatusWorkflow(t *testing.T) {
	db := openTestDB(t)
	sub := seedSubcategory(t, db)
	svc, _ := newTestService(t, db, &fakeGateway{})
	resp := seedAnsweredConsultation(t, db, sub, "uncovered question")

	p, err := svc.CreatePendingTopic(context.Background(), resp.ConsultationID, sub.ID, "card insurance")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.Status != models.PendingTopicOpen {
		t.Fatalf("expected new topic open, got %q", p.Status)
	}

	if _, err := svc.UpdatePendingTopicStatus(context.Background(), p.ID, "  "); common.KindOf(err) != common.KindInvalidInput {
		t.Fatalf("blank status: expected invalid-input, got %v", err)
	}
	if _, err := svc.UpdatePendingTopicStatus(context.Background(), 999, "done"); common.KindOf(err) != common.KindNotFound {
		t.Fatalf("unknown topic: expected not-found, got %v", err)
	}

	upd, err := svc.UpdatePendingTopicStatus(context.Background(), p.ID, "resolved")
	if err != nil {
		t.Fatalf("update status: %v", err)
	}
	if upd.Status != "resolved" {
		t.Fatalf("expected resolved, got %q", upd.Status)
	}

	if err := svc.DeletePendingTopic(context.Background(), p.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := svc.DeletePendingTopic(context.Background(), p.ID); common.KindOf(err) != common.KindNotFound {
		t.Fatalf("second delete: expected not-found, got %v", err)
	}

	topics, err := svc.ListPendingTopics(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(topics) != 0 {
		t.Fatalf("expected no topics left, got %d", len(topics))
	}
}

func TestCreatePendingTopic(t *testing.T) {
	db := openTestDB(t)
	sub := seedSubcategory(t, db)
	svc, _ := newTestService(t, db, &fakeGateway{})
	resp := seedAnsweredConsultation(t, db, sub, "uncovered question")

	if _, err := svc.CreatePendingTopic(context.Background(), resp.ConsultationID, sub.ID, "   "); common.KindOf(err) != common.KindInvalidInput {
		t.Fatalf("blank topic: expected invalid-input, got %v", err)
	}
	if _, err := svc.CreatePendingTopic(context.Background(), 999, sub.ID, "topic"); common.KindOf(err) != common.KindNotFound {
		t.Fatalf("unknown consultation: expected not-found, got %v", err)
	}

	p, err := svc.CreatePendingTopic(context.Background(), resp.ConsultationID, sub.ID, "  card insurance  ")
	if err != nil {
		t.Fatalf("create pending topic: %v", err)
	}
	if p.TopicText != "card insurance" {
		t.Fatalf("expected trimmed topic text, got %q", p.TopicText)
	}
}

func TestIngestJob_Lifecycle(t *testing.T) {
	db := openTestDB(t)
	sub := seedSubcategory(t, db)
	gw := &fakeGateway{chunks: []ai.ProcessedDocument{{Title: "chunk", SubcategoryID: sub.ID}}}
	svc, _ := newTestService(t, db, gw)

	job, err := svc.EnqueueIngest(context.Background(), IngestInput{
		Title:         "async doc",
		SubcategoryID: sub.ID,
		Keywords:      []string{"vpn", "access"},
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if job.Status != models.IngestQueued || len(job.ID) != 26 {
		t.Fatalf("unexpected queued job: status=%s id=%q", job.Status, job.ID)
	}

	if err := svc.RunIngestJob(context.Background(), job.ID); err != nil {
		t.Fatalf("run: %v", err)
	}

	got, err := svc.GetIngestJob(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if got.Status != models.IngestSucceeded {
		t.Fatalf("expected succeeded, got %s", got.Status)
	}
	if got.DocumentsCreated == nil || *got.DocumentsCreated != 1 {
		t.Fatalf("expected 1 document recorded, got %v", got.DocumentsCreated)
	}

	// terminal jobs are not rerun
	if err := svc.RunIngestJob(context.Background(), job.ID); err != nil {
		t.Fatalf("rerun: %v", err)
	}
	var docCount int64
	if err := db.Model(&models.Document{}).Count(&docCount).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if docCount != 1 {
		t.Fatalf("rerun of a finished job must not create documents, got %d", docCount)
	}
}

func TestIngestJob_FailureIsRecorded(t *testing.T) {
	db := openTestDB(t)
	sub := seedSubcategory(t, db)
	gw := &fakeGateway{processErr: errors.New("processing service down")}
	svc, _ := newTestService(t, db, gw)

	job, err := svc.EnqueueIngest(context.Background(), IngestInput{Title: "doc", SubcategoryID: sub.ID})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := svc.RunIngestJob(context.Background(), job.ID); err == nil {
		t.Fatalf("expected run to fail")
	}

	got, err := svc.GetIngestJob(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if got.Status != models.IngestFailed {
		t.Fatalf("expected failed, got %s", got.Status)
	}
	if got.Error == nil || *got.Error == "" {
		t.Fatalf("expected error message recorded")
	}
}
