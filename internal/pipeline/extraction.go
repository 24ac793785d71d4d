package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/velora-health/privacy-engine/internal/anonymize"
	"github.com/velora-health/privacy-engine/internal/audit"
	"github.com/velora-health/privacy-engine/internal/cryptox"
	"github.com/velora-health/privacy-engine/internal/models"
	"github.com/velora-health/privacy-engine/internal/privacy"
	"github.com/velora-health/privacy-engine/internal/vector"
	"gorm.io/datatypes"
)

// ExtractionStats is the operational summary of one hourly run.
type ExtractionStats struct {
	ChatsScanned      int           `json:"chats_scanned"`
	ConsentFiltered   int           `json:"consent_filtered"`
	QAInserted        int           `json:"qa_inserted"`
	QASuppressed      int           `json:"qa_suppressed"`
	QADuplicates      int           `json:"qa_duplicates"`
	BloodworkInserted int           `json:"bloodwork_inserted"`
	FeedbackInserted  int           `json:"feedback_inserted"`
	AutoPromoted      int           `json:"auto_promoted"`
	Elapsed           time.Duration `json:"elapsed"`
}

// RunExtraction promotes eligible Tier 1 records from the lookback window
// into Tier 2. Record-level failures are isolated; only batch-level failures
// propagate (the next hourly tick retries).
func (s *Service) RunExtraction(ctx context.Context) (*ExtractionStats, error) {
	start := time.Now().UTC()
	since := start.Add(-extractionLookback * time.Hour)
	stats := &ExtractionStats{}

	userIDs, err := s.activeUserIDs(since)
	if err != nil {
		return nil, err
	}
	eligible, err := s.loadEligibility(userIDs)
	if err != nil {
		return nil, err
	}
	profiles, err := s.loadUserProfiles(userIDs)
	if err != nil {
		return nil, err
	}

	if err := s.extractQAPairs(ctx, since, start, eligible, profiles, stats); err != nil {
		return nil, err
	}
	if err := s.extractBloodwork(since, start, eligible, profiles, stats); err != nil {
		return nil, err
	}
	if err := s.extractFeedback(since, start, eligible, profiles, stats); err != nil {
		return nil, err
	}
	s.autoPromote(ctx, stats)

	stats.Elapsed = time.Since(start)
	if _, err := s.audit.Log(audit.Event{
		Action:    audit.ActionTier2Extraction,
		Tier:      "tier2",
		ActorType: "system",
		Details: map[string]any{
			"qa_inserted":        stats.QAInserted,
			"qa_suppressed":      stats.QASuppressed,
			"bloodwork_inserted": stats.BloodworkInserted,
			"feedback_inserted":  stats.FeedbackInserted,
			"auto_promoted":      stats.AutoPromoted,
			"elapsed_ms":         stats.Elapsed.Milliseconds(),
		},
	}); err != nil {
		slog.Error("failed to audit extraction run", "job", "extraction", "error", err)
	}

	slog.Info("tier2 extraction completed",
		"job", "extraction",
		"qa_inserted", stats.QAInserted,
		"qa_suppressed", stats.QASuppressed,
		"bloodwork_inserted", stats.BloodworkInserted,
		"feedback_inserted", stats.FeedbackInserted,
		"elapsed", stats.Elapsed.String())
	return stats, nil
}

func (s *Service) activeUserIDs(since time.Time) ([]uuid.UUID, error) {
	seen := make(map[uuid.UUID]struct{})

	var chatUsers []uuid.UUID
	if err := s.db.Model(&models.Chat{}).Where("updated_at >= ?", since).Distinct().Pluck("user_id", &chatUsers).Error; err != nil {
		return nil, fmt.Errorf("load chat users: %w", err)
	}
	var bloodworkUsers []uuid.UUID
	if err := s.db.Model(&models.BloodworkReport{}).Where("created_at >= ?", since).Distinct().Pluck("user_id", &bloodworkUsers).Error; err != nil {
		return nil, fmt.Errorf("load bloodwork users: %w", err)
	}
	var activityUsers []uuid.UUID
	if err := s.db.Model(&models.UserActivity{}).Where("created_at >= ? AND type = ?", since, "feedback").Distinct().Pluck("user_id", &activityUsers).Error; err != nil {
		return nil, fmt.Errorf("load activity users: %w", err)
	}

	for _, ids := range [][]uuid.UUID{chatUsers, bloodworkUsers, activityUsers} {
		for _, id := range ids {
			seen[id] = struct{}{}
		}
	}
	out := make([]uuid.UUID, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	return out, nil
}

// userProfile carries the already-generalized user attributes Tier 2
// records may keep.
type userProfile struct {
	AgeGroup string
	Language string
}

func (s *Service) loadUserProfiles(userIDs []uuid.UUID) (map[uuid.UUID]userProfile, error) {
	profiles := make(map[uuid.UUID]userProfile, len(userIDs))
	if len(userIDs) == 0 {
		return profiles, nil
	}
	var users []models.User
	if err := s.db.Where("id IN ?", userIDs).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	now := time.Now().UTC()
	for _, u := range users {
		p := userProfile{Language: u.Language}
		if u.BirthDate != nil {
			p.AgeGroup = anonymize.GeneralizeAge(yearsBetween(*u.BirthDate, now))
		}
		profiles[u.ID] = p
	}
	return profiles, nil
}

func yearsBetween(from, to time.Time) int {
	years := to.Year() - from.Year()
	if to.YearDay() < from.YearDay() {
		years--
	}
	return years
}

// resolvedMessage is a chat message with its content decrypted (or fallen
// back to stored plaintext).
type resolvedMessage struct {
	Role string
	Text string
}

// qaPair is one adjacent (user, ai) exchange.
type qaPair struct {
	Question string
	Answer   string
}

// pairAdjacent walks messages in order and pairs each user message with the
// ai message that immediately follows it.
func pairAdjacent(messages []resolvedMessage) []qaPair {
	var pairs []qaPair
	for i := 0; i+1 < len(messages); i++ {
		if messages[i].Role == "user" && messages[i+1].Role == "ai" {
			if messages[i].Text == "" || messages[i+1].Text == "" {
				continue
			}
			pairs = append(pairs, qaPair{Question: messages[i].Text, Answer: messages[i+1].Text})
		}
	}
	return pairs
}

func (s *Service) extractQAPairs(ctx context.Context, since, extractedAt time.Time, eligible map[uuid.UUID]bool, profiles map[uuid.UUID]userProfile, stats *ExtractionStats) error {
	var chats []models.Chat
	if err := s.db.Where("updated_at >= ?", since).Find(&chats).Error; err != nil {
		return fmt.Errorf("load chats: %w", err)
	}

	expiresAt := expiryFor(extractedAt, s.cfg.Tier2RetentionMonths)
	seenHashes := make(map[string]struct{})
	var candidates []models.AnonymizedQAPair

	for _, chat := range chats {
		stats.ChatsScanned++
		if !eligible[chat.UserID] {
			stats.ConsentFiltered++
			continue
		}

		messages, err := s.resolveMessages(chat.ID)
		if err != nil {
			slog.Error("skipping chat", "job", "extraction", "chat_id", chat.ID, "error", err)
			continue
		}

		language := chat.Language
		if language == "" {
			language = "en"
		}

		for _, pair := range pairAdjacent(messages) {
			hash := anonymize.HashForDedup(pair.Question)
			if _, dup := seenHashes[hash]; dup {
				stats.QADuplicates++
				continue
			}
			seenHashes[hash] = struct{}{}

			candidates = append(candidates, models.AnonymizedQAPair{
				QuestionHash: hash,
				Question:     anonymize.TruncateRunes(s.sanitizer.Sanitize(pair.Question), questionMaxLen),
				Answer:       anonymize.TruncateRunes(s.sanitizer.Sanitize(pair.Answer), answerMaxLen),
				Category:     anonymize.CategorizeQuestion(pair.Question),
				Language:     language,
				AgeGroup:     profiles[chat.UserID].AgeGroup,
				ExtractedAt:  extractedAt,
				ExpiresAt:    expiresAt,
			})
		}
	}

	candidates, existingDups, err := s.dropExistingQAPairs(candidates)
	if err != nil {
		return err
	}
	stats.QADuplicates += existingDups

	kept := s.applyKAnonymityGate(candidates, stats)
	if len(kept) == 0 {
		return nil
	}

	if err := s.db.CreateInBatches(kept, 100).Error; err != nil {
		return fmt.Errorf("insert qa pairs: %w", err)
	}
	stats.QAInserted = len(kept)

	// Best-effort index mirroring: a failed document never aborts the run.
	for _, rec := range kept {
		doc := vector.Document{
			SourceID:   rec.QuestionHash,
			Collection: vector.CollectionTier2QA,
			Content:    rec.Question + "\n" + rec.Answer,
			Metadata:   map[string]string{"category": rec.Category, "language": rec.Language},
		}
		if err := s.indexer.Index(ctx, doc); err != nil {
			slog.Error("vector mirroring failed", "job", "extraction", "question_hash", rec.QuestionHash, "error", err)
		}
	}
	return nil
}

func (s *Service) dropExistingQAPairs(candidates []models.AnonymizedQAPair) ([]models.AnonymizedQAPair, int, error) {
	if len(candidates) == 0 {
		return candidates, 0, nil
	}
	hashes := make([]string, len(candidates))
	for i, c := range candidates {
		hashes[i] = c.QuestionHash
	}
	var existing []string
	if err := s.db.Model(&models.AnonymizedQAPair{}).Where("question_hash IN ?", hashes).Pluck("question_hash", &existing).Error; err != nil {
		return nil, 0, fmt.Errorf("dedup qa pairs: %w", err)
	}
	known := make(map[string]struct{}, len(existing))
	for _, h := range existing {
		known[h] = struct{}{}
	}

	fresh := candidates[:0]
	dups := 0
	for _, c := range candidates {
		if _, ok := known[c.QuestionHash]; ok {
			dups++
			continue
		}
		fresh = append(fresh, c)
	}
	return fresh, dups, nil
}

// applyKAnonymityGate validates the full candidate batch on the
// {language, category} tuple and keeps only records from groups of at least
// the configured k. Suppressed records are dropped for this cycle and
// re-evaluated next hour.
func (s *Service) applyKAnonymityGate(candidates []models.AnonymizedQAPair, stats *ExtractionStats) []models.AnonymizedQAPair {
	if len(candidates) == 0 {
		return nil
	}

	records := make([]map[string]any, len(candidates))
	for i, c := range candidates {
		records[i] = map[string]any{"idx": i, "language": c.Language, "category": c.Category}
	}

	result := privacy.ValidateKAnonymity(records, []string{"language", "category"}, s.cfg.KAnonymityThreshold)
	stats.QASuppressed = len(result.Suppressed)
	if !result.Valid {
		slog.Info("k-anonymity gate suppressed records",
			"job", "extraction", "k", result.K, "suppressed", len(result.Suppressed), "groups", result.GroupCount)
	}

	kept := make([]models.AnonymizedQAPair, 0, len(result.Kept))
	for _, rec := range result.Kept {
		kept = append(kept, candidates[rec["idx"].(int)])
	}
	return kept
}

func (s *Service) resolveMessages(chatID uuid.UUID) ([]resolvedMessage, error) {
	var messages []models.ChatMessage
	if err := s.db.Where("chat_id = ?", chatID).Order("created_at ASC").Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}

	resolved := make([]resolvedMessage, 0, len(messages))
	for _, m := range messages {
		resolved = append(resolved, resolvedMessage{Role: m.Role, Text: s.messageText(m)})
	}
	return resolved, nil
}

// messageText decrypts an enveloped message, falling back to the stored
// plaintext column when decryption fails or encryption is disabled.
func (s *Service) messageText(m models.ChatMessage) string {
	if len(m.Envelope) == 0 || !s.cipher.Enabled() {
		return m.Content
	}
	var env cryptox.Envelope
	if err := json.Unmarshal(m.Envelope, &env); err != nil {
		slog.Warn("malformed message envelope, using stored plaintext", "job", "extraction", "message_id", m.ID, "error", err)
		return m.Content
	}
	text, err := s.cipher.DecryptField(&env)
	if err != nil {
		slog.Warn("message decryption failed, using stored plaintext", "job", "extraction", "message_id", m.ID, "error", err)
		return m.Content
	}
	return text
}

func (s *Service) extractBloodwork(since, extractedAt time.Time, eligible map[uuid.UUID]bool, profiles map[uuid.UUID]userProfile, stats *ExtractionStats) error {
	var reports []models.BloodworkReport
	if err := s.db.Where("created_at >= ?", since).Find(&reports).Error; err != nil {
		return fmt.Errorf("load bloodwork reports: %w", err)
	}

	expiresAt := expiryFor(extractedAt, s.cfg.Tier2RetentionMonths)
	var candidates []models.AnonymizedBloodwork

	for _, report := range reports {
		if !eligible[report.UserID] {
			stats.ConsentFiltered++
			continue
		}

		rec, err := s.anonymizeBloodwork(report, extractedAt, expiresAt, profiles[report.UserID].AgeGroup)
		if err != nil {
			slog.Error("skipping bloodwork report", "job", "extraction", "report_id", report.ID, "error", err)
			continue
		}
		candidates = append(candidates, *rec)
	}

	inserted, err := s.insertDedupedBloodwork(candidates)
	if err != nil {
		return err
	}
	stats.BloodworkInserted = inserted
	return nil
}

func (s *Service) anonymizeBloodwork(report models.BloodworkReport, extractedAt, expiresAt time.Time, ageGroup string) (*models.AnonymizedBloodwork, error) {
	var markers []models.BloodMarker
	if len(report.Markers) > 0 {
		if err := json.Unmarshal(report.Markers, &markers); err != nil {
			return nil, fmt.Errorf("unmarshal markers: %w", err)
		}
	}

	generalized := make([]models.GeneralizedMarker, 0, len(markers))
	for _, m := range markers {
		g := anonymize.GeneralizeBloodworkValue(m.Name, m.Value, m.Unit)
		out := models.GeneralizedMarker{Name: g.Name, Range: g.Range, Unit: g.Unit}
		// Noised raw value retains statistical utility without the exact
		// measurement.
		if g.Range != "unknown" {
			if v, err := parseNumeric(m.Value); err == nil {
				out.NoisedValue = anonymize.AddLaplaceNoise(v, s.cfg.DPEpsilon, 1.0)
			}
		}
		generalized = append(generalized, out)
	}

	markersJSON, err := json.Marshal(generalized)
	if err != nil {
		return nil, fmt.Errorf("marshal generalized markers: %w", err)
	}

	summary := s.summaryText(report)
	return &models.AnonymizedBloodwork{
		SourceHash:  anonymize.HashForDedup(report.ID.String()),
		Markers:     datatypes.JSON(markersJSON),
		Summary:     anonymize.TruncateRunes(s.sanitizer.Sanitize(summary), summaryMaxLen),
		AgeGroup:    ageGroup,
		CycleBucket: anonymize.TemporalBucket(report.CollectedAt, report.CyclePhase),
		ExtractedAt: extractedAt,
		ExpiresAt:   expiresAt,
	}, nil
}

func (s *Service) summaryText(report models.BloodworkReport) string {
	if len(report.SummaryEnvelope) == 0 || !s.cipher.Enabled() {
		return report.Summary
	}
	var env cryptox.Envelope
	if err := json.Unmarshal(report.SummaryEnvelope, &env); err != nil {
		slog.Warn("malformed summary envelope, using stored plaintext", "job", "extraction", "report_id", report.ID, "error", err)
		return report.Summary
	}
	text, err := s.cipher.DecryptField(&env)
	if err != nil {
		slog.Warn("summary decryption failed, using stored plaintext", "job", "extraction", "report_id", report.ID, "error", err)
		return report.Summary
	}
	return text
}

func (s *Service) insertDedupedBloodwork(candidates []models.AnonymizedBloodwork) (int, error) {
	if len(candidates) == 0 {
		return 0, nil
	}
	hashes := make([]string, len(candidates))
	for i, c := range candidates {
		hashes[i] = c.SourceHash
	}
	var existing []string
	if err := s.db.Model(&models.AnonymizedBloodwork{}).Where("source_hash IN ?", hashes).Pluck("source_hash", &existing).Error; err != nil {
		return 0, fmt.Errorf("dedup bloodwork: %w", err)
	}
	known := make(map[string]struct{}, len(existing))
	for _, h := range existing {
		known[h] = struct{}{}
	}

	fresh := candidates[:0]
	for _, c := range candidates {
		if _, ok := known[c.SourceHash]; !ok {
			fresh = append(fresh, c)
		}
	}
	if len(fresh) == 0 {
		return 0, nil
	}
	if err := s.db.CreateInBatches(fresh, 100).Error; err != nil {
		return 0, fmt.Errorf("insert bloodwork: %w", err)
	}
	return len(fresh), nil
}

func (s *Service) extractFeedback(since, extractedAt time.Time, eligible map[uuid.UUID]bool, profiles map[uuid.UUID]userProfile, stats *ExtractionStats) error {
	var activities []models.UserActivity
	if err := s.db.Where("created_at >= ? AND type = ? AND rating IS NOT NULL", since, "feedback").Find(&activities).Error; err != nil {
		return fmt.Errorf("load feedback activities: %w", err)
	}

	expiresAt := expiryFor(extractedAt, s.cfg.Tier2RetentionMonths)
	var candidates []models.TrainingFeedback

	for _, a := range activities {
		if !eligible[a.UserID] {
			stats.ConsentFiltered++
			continue
		}

		language := profiles[a.UserID].Language
		if language == "" {
			language = "en"
		}
		candidates = append(candidates, models.TrainingFeedback{
			SourceHash:  anonymize.HashForDedup(a.ID.String()),
			Category:    anonymize.CategorizeQuestion(a.QuestionText),
			Rating:      *a.Rating,
			Comment:     anonymize.TruncateRunes(s.sanitizer.Sanitize(a.Comment), summaryMaxLen),
			Language:    language,
			ExtractedAt: extractedAt,
			ExpiresAt:   expiresAt,
		})

		// Quality-score backfill: feedback carrying the original question
		// updates the matching Q&A pair, feeding auto-promotion.
		if a.QuestionText != "" {
			hash := anonymize.HashForDedup(a.QuestionText)
			if err := s.db.Model(&models.AnonymizedQAPair{}).
				Where("question_hash = ?", hash).
				Update("quality_score", *a.Rating).Error; err != nil {
				slog.Error("quality score backfill failed", "job", "extraction", "question_hash", hash, "error", err)
			}
		}
	}

	inserted, err := s.insertDedupedFeedback(candidates)
	if err != nil {
		return err
	}
	stats.FeedbackInserted = inserted
	return nil
}

func (s *Service) insertDedupedFeedback(candidates []models.TrainingFeedback) (int, error) {
	if len(candidates) == 0 {
		return 0, nil
	}
	hashes := make([]string, len(candidates))
	for i, c := range candidates {
		hashes[i] = c.SourceHash
	}
	var existing []string
	if err := s.db.Model(&models.TrainingFeedback{}).Where("source_hash IN ?", hashes).Pluck("source_hash", &existing).Error; err != nil {
		return 0, fmt.Errorf("dedup feedback: %w", err)
	}
	known := make(map[string]struct{}, len(existing))
	for _, h := range existing {
		known[h] = struct{}{}
	}

	fresh := candidates[:0]
	for _, c := range candidates {
		if _, ok := known[c.SourceHash]; !ok {
			fresh = append(fresh, c)
		}
	}
	if len(fresh) == 0 {
		return 0, nil
	}
	if err := s.db.CreateInBatches(fresh, 100).Error; err != nil {
		return 0, fmt.Errorf("insert feedback: %w", err)
	}
	return len(fresh), nil
}

// autoPromote moves up to autoPromoteBatch high-quality pairs into the
// knowledge base index. Each promotion is independent; one failure never
// blocks the others.
func (s *Service) autoPromote(ctx context.Context, stats *ExtractionStats) {
	var pairs []models.AnonymizedQAPair
	err := s.db.Where("quality_score >= ? AND auto_promoted = ?", autoPromoteMinQuality, false).
		Order("quality_score DESC").Limit(autoPromoteBatch).Find(&pairs).Error
	if err != nil {
		slog.Error("auto-promotion query failed", "job", "extraction", "error", err)
		return
	}

	for _, pair := range pairs {
		doc := vector.Document{
			SourceID:   pair.QuestionHash,
			Collection: vector.CollectionKnowledgeBase,
			Content:    pair.Question + "\n" + pair.Answer,
			Metadata: map[string]string{
				"category": pair.Category,
				"language": pair.Language,
				"source":   "auto_quality_gate",
			},
		}
		if err := s.indexer.Index(ctx, doc); err != nil {
			slog.Error("auto-promotion indexing failed", "job", "extraction", "question_hash", pair.QuestionHash, "error", err)
			continue
		}
		if err := s.db.Model(&models.AnonymizedQAPair{}).Where("id = ?", pair.ID).Update("auto_promoted", true).Error; err != nil {
			slog.Error("auto-promotion flag update failed", "job", "extraction", "question_hash", pair.QuestionHash, "error", err)
			continue
		}
		stats.AutoPromoted++
	}
}

func expiryFor(extractedAt time.Time, retentionMonths int) time.Time {
	return extractedAt.AddDate(0, retentionMonths, 0)
}

func parseNumeric(raw string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(raw), 64)
}
