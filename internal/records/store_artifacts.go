package records

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"checkrecon/internal/services"
)

const imageColumns = "id, record_id, document_id, page, processing_type, data, file_path, created_at"

const ocrColumns = `o.id, o.image_id, i.record_id, i.page, o.preprocessing_type, o.extracted_text, o.payee_match,
    o.matched_candidates, o.possible_matches, o.best_candidate, o.best_score, o.best_window, o.created_at, o.updated_at`

// AttachDocument stores the fetched document of a record and advances it to
// downloaded. Re-attaching to a record that is already downloaded returns
// the stored document unchanged.
func (s *Store) AttachDocument(ctx context.Context, recordID string, data []byte) (*Document, error) {
	if len(data) == 0 {
		return nil, services.Wrap(services.ErrValidation, "records", "attach document", "document is empty", nil)
	}
	var doc *Document
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		changed, err := s.transitionTx(ctx, tx, recordID, StatusDownloaded, "")
		if err != nil {
			return err
		}
		if !changed {
			doc, err = documentForRecordTx(ctx, tx, recordID)
			return err
		}
		sum := sha256.Sum256(data)
		doc = &Document{
			ID:        uuid.NewString(),
			RecordID:  recordID,
			Data:      data,
			Size:      int64(len(data)),
			Checksum:  hex.EncodeToString(sum[:]),
			CreatedAt: s.now(),
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO documents (id, record_id, data, size, checksum, created_at) VALUES (?, ?, ?, ?, ?, ?)",
			doc.ID, doc.RecordID, doc.Data, doc.Size, doc.Checksum, formatTime(doc.CreatedAt),
		); err != nil {
			return fmt.Errorf("insert document: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// DocumentForRecord returns the stored document of a record.
func (s *Store) DocumentForRecord(ctx context.Context, recordID string) (*Document, error) {
	return documentForRecordTx(ensureContext(ctx), s.db, recordID)
}

func documentForRecordTx(ctx context.Context, tx querier, recordID string) (*Document, error) {
	var (
		doc     Document
		created string
	)
	err := tx.QueryRowContext(ctx,
		"SELECT id, record_id, data, size, checksum, created_at FROM documents WHERE record_id = ?", recordID,
	).Scan(&doc.ID, &doc.RecordID, &doc.Data, &doc.Size, &doc.Checksum, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("document for record", recordID)
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	doc.CreatedAt = parseTimeString(created)
	return &doc, nil
}

// AttachPageImages stores the rendered pages of a record's document as raw
// images, numbered from 1 in the given order, and advances the record to
// converted.
func (s *Store) AttachPageImages(ctx context.Context, recordID string, pages [][]byte) ([]*Image, error) {
	if len(pages) == 0 {
		return nil, services.Wrap(services.ErrValidation, "records", "attach images", "no pages to store", nil)
	}
	var images []*Image
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		images = nil
		changed, err := s.transitionTx(ctx, tx, recordID, StatusConverted, "")
		if err != nil {
			return err
		}
		if !changed {
			images, err = imagesForRecordTx(ctx, tx, recordID)
			return err
		}
		doc, err := documentForRecordTx(ctx, tx, recordID)
		if err != nil {
			return err
		}
		now := s.now()
		for i, page := range pages {
			if len(page) == 0 {
				return services.Wrap(services.ErrValidation, "records", "attach images",
					fmt.Sprintf("page %d is empty", i+1), nil)
			}
			img := &Image{
				ID:             uuid.NewString(),
				RecordID:       recordID,
				DocumentID:     doc.ID,
				Page:           i + 1,
				ProcessingType: ProcessingRaw,
				Data:           page,
				CreatedAt:      now,
			}
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO images (id, record_id, document_id, page, processing_type, data, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
				img.ID, img.RecordID, img.DocumentID, img.Page, img.ProcessingType, img.Data, formatTime(now),
			); err != nil {
				return fmt.Errorf("insert image page %d: %w", img.Page, err)
			}
			images = append(images, img)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return images, nil
}

// ImagesForRecord returns a record's images ordered by page.
func (s *Store) ImagesForRecord(ctx context.Context, recordID string) ([]*Image, error) {
	return imagesForRecordTx(ensureContext(ctx), s.db, recordID)
}

func imagesForRecordTx(ctx context.Context, tx querier, recordID string) ([]*Image, error) {
	rows, err := tx.QueryContext(ctx,
		"SELECT "+imageColumns+" FROM images WHERE record_id = ? ORDER BY page, processing_type", recordID)
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	defer rows.Close()
	var images []*Image
	for rows.Next() {
		var (
			img      Image
			filePath sql.NullString
			created  string
		)
		if err := rows.Scan(&img.ID, &img.RecordID, &img.DocumentID, &img.Page, &img.ProcessingType, &img.Data, &filePath, &created); err != nil {
			return nil, fmt.Errorf("scan image: %w", err)
		}
		img.FilePath = filePath.String
		img.CreatedAt = parseTimeString(created)
		images = append(images, &img)
	}
	return images, rows.Err()
}

// MarkImagesSaved records where each raw image of a record was written and
// advances the record to raw_image_saved. paths maps image id to file path
// and must cover every raw image of the record.
func (s *Store) MarkImagesSaved(ctx context.Context, recordID string, paths map[string]string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		changed, err := s.transitionTx(ctx, tx, recordID, StatusRawImageSaved, "")
		if err != nil || !changed {
			return err
		}
		images, err := imagesForRecordTx(ctx, tx, recordID)
		if err != nil {
			return err
		}
		for _, img := range images {
			if img.ProcessingType != ProcessingRaw {
				continue
			}
			path := strings.TrimSpace(paths[img.ID])
			if path == "" {
				return services.Wrap(services.ErrValidation, "records", "mark images saved",
					fmt.Sprintf("no file path for page %d", img.Page), nil)
			}
			if _, err := tx.ExecContext(ctx, "UPDATE images SET file_path = ? WHERE id = ?", path, img.ID); err != nil {
				return fmt.Errorf("update image path: %w", err)
			}
		}
		return nil
	})
}

// AttachOCRResults stores the text recognized for a record's images and
// advances the record to text_extracted. New results start with payee_match
// pending.
func (s *Store) AttachOCRResults(ctx context.Context, recordID string, results []OCRInput) ([]*OCRResult, error) {
	if len(results) == 0 {
		return nil, services.Wrap(services.ErrValidation, "records", "attach text", "no recognition results", nil)
	}
	var out []*OCRResult
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		out = nil
		changed, err := s.transitionTx(ctx, tx, recordID, StatusTextExtracted, "")
		if err != nil {
			return err
		}
		if changed {
			owned, err := imagesForRecordTx(ctx, tx, recordID)
			if err != nil {
				return err
			}
			ownedIDs := make(map[string]struct{}, len(owned))
			for _, img := range owned {
				ownedIDs[img.ID] = struct{}{}
			}
			now := formatTime(s.now())
			for _, result := range results {
				if _, ok := ownedIDs[result.ImageID]; !ok {
					return services.Wrap(services.ErrValidation, "records", "attach text",
						fmt.Sprintf("image %s does not belong to record %s", result.ImageID, recordID), nil)
				}
				preprocessing := strings.TrimSpace(result.PreprocessingType)
				if preprocessing == "" {
					preprocessing = ProcessingRaw
				}
				if _, err := tx.ExecContext(ctx, `INSERT INTO ocr_results (
                        id, image_id, preprocessing_type, extracted_text, payee_match, created_at, updated_at
                    ) VALUES (?, ?, ?, ?, ?, ?, ?)`,
					uuid.NewString(), result.ImageID, preprocessing, result.Text, string(PayeeMatchPending), now, now,
				); err != nil {
					return fmt.Errorf("insert ocr result: %w", err)
				}
			}
		}
		out, err = ocrResultsTx(ctx, tx, "i.record_id = ?", recordID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// OCRResultsForRecord returns a record's OCR results ordered by page.
func (s *Store) OCRResultsForRecord(ctx context.Context, recordID string) ([]*OCRResult, error) {
	return ocrResultsTx(ensureContext(ctx), s.db, "i.record_id = ?", recordID)
}

// GetOCRResult fetches one OCR result by id.
func (s *Store) GetOCRResult(ctx context.Context, id string) (*OCRResult, error) {
	out, err := ocrResultsTx(ensureContext(ctx), s.db, "o.id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, notFound("ocr result", id)
	}
	return out[0], nil
}

func ocrResultsTx(ctx context.Context, tx querier, where string, args ...any) ([]*OCRResult, error) {
	rows, err := tx.QueryContext(ctx,
		"SELECT "+ocrColumns+" FROM ocr_results o JOIN images i ON i.id = o.image_id WHERE "+where+" ORDER BY i.page, o.preprocessing_type",
		args...)
	if err != nil {
		return nil, fmt.Errorf("list ocr results: %w", err)
	}
	defer rows.Close()
	var out []*OCRResult
	for rows.Next() {
		result, err := scanOCRResult(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, result)
	}
	return out, rows.Err()
}

func scanOCRResult(scanner rowScanner) (*OCRResult, error) {
	var (
		result        OCRResult
		payeeMatch    string
		matchedRaw    sql.NullString
		possibleRaw   sql.NullString
		bestCandidate sql.NullString
		bestScore     sql.NullFloat64
		bestWindow    sql.NullString
		created       string
		updated       string
	)
	if err := scanner.Scan(
		&result.ID,
		&result.ImageID,
		&result.RecordID,
		&result.Page,
		&result.PreprocessingType,
		&result.ExtractedText,
		&payeeMatch,
		&matchedRaw,
		&possibleRaw,
		&bestCandidate,
		&bestScore,
		&bestWindow,
		&created,
		&updated,
	); err != nil {
		return nil, fmt.Errorf("scan ocr result: %w", err)
	}
	result.PayeeMatch = PayeeMatch(payeeMatch)
	if err := unmarshalJSON(matchedRaw, &result.Matched); err != nil {
		return nil, fmt.Errorf("decode matched candidates: %w", err)
	}
	if err := unmarshalJSON(possibleRaw, &result.Possible); err != nil {
		return nil, fmt.Errorf("decode possible matches: %w", err)
	}
	if bestCandidate.Valid {
		result.Best = &PossibleMatch{Candidate: bestCandidate.String, Score: bestScore.Float64, Window: bestWindow.String}
	}
	result.CreatedAt = parseTimeString(created)
	result.UpdatedAt = parseTimeString(updated)
	return &result, nil
}

// RecordPayeeMatch stores the matching outcome of one OCR result. The owning
// record advances to payee_match_attempted only once none of its OCR results
// is still pending, so a partially matched record is picked up again by the
// payee stage.
func (s *Store) RecordPayeeMatch(ctx context.Context, ocrID string, outcome MatchOutcome) error {
	encoded, err := encodeOutcome(outcome)
	if err != nil {
		return err
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		recordID, err := ocrOwnerTx(ctx, tx, ocrID)
		if err != nil {
			return err
		}
		if err := payeeMatchAllowedTx(ctx, tx, recordID); err != nil {
			return err
		}
		if err := s.updatePayeeMatchTx(ctx, tx, ocrID, encoded); err != nil {
			return err
		}
		pending, err := pendingMatchesTx(ctx, tx, recordID)
		if err != nil || pending > 0 {
			return err
		}
		_, err = s.transitionTx(ctx, tx, recordID, StatusPayeeMatchAttempted, "")
		return err
	})
}

// RecordPayeeMatches stores the outcomes of every OCR result of a record,
// keyed by OCR result id, and advances the record to payee_match_attempted
// in the same transaction. Outcomes must cover every result still pending.
func (s *Store) RecordPayeeMatches(ctx context.Context, recordID string, outcomes map[string]MatchOutcome) error {
	if len(outcomes) == 0 {
		return services.Wrap(services.ErrValidation, "records", "record payee match",
			fmt.Sprintf("no outcomes given for record %s", recordID), nil)
	}
	ids := make([]string, 0, len(outcomes))
	encoded := make(map[string]encodedOutcome, len(outcomes))
	for id, outcome := range outcomes {
		enc, err := encodeOutcome(outcome)
		if err != nil {
			return err
		}
		ids = append(ids, id)
		encoded[id] = enc
	}
	sort.Strings(ids)

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := payeeMatchAllowedTx(ctx, tx, recordID); err != nil {
			return err
		}
		for _, id := range ids {
			owner, err := ocrOwnerTx(ctx, tx, id)
			if err != nil {
				return err
			}
			if owner != recordID {
				return services.Wrap(services.ErrValidation, "records", "record payee match",
					fmt.Sprintf("ocr result %s belongs to record %s, not %s", id, owner, recordID), nil)
			}
			if err := s.updatePayeeMatchTx(ctx, tx, id, encoded[id]); err != nil {
				return err
			}
		}
		pending, err := pendingMatchesTx(ctx, tx, recordID)
		if err != nil {
			return err
		}
		if pending > 0 {
			return services.Wrap(services.ErrValidation, "records", "record payee match",
				fmt.Sprintf("%d ocr result(s) of record %s have no outcome", pending, recordID), nil)
		}
		_, err = s.transitionTx(ctx, tx, recordID, StatusPayeeMatchAttempted, "")
		return err
	})
}

type encodedOutcome struct {
	payeeMatch    string
	matched       any
	possible      any
	bestCandidate any
	bestScore     any
	bestWindow    any
}

func encodeOutcome(outcome MatchOutcome) (encodedOutcome, error) {
	switch outcome.PayeeMatch {
	case PayeeMatchYes, PayeeMatchNo:
	default:
		return encodedOutcome{}, services.Wrap(services.ErrValidation, "records", "record payee match",
			fmt.Sprintf("outcome must be yes or no, got %q", outcome.PayeeMatch), nil)
	}
	matched, err := marshalJSON(nonNilStrings(outcome.Matched))
	if err != nil {
		return encodedOutcome{}, fmt.Errorf("encode matched candidates: %w", err)
	}
	possible, err := marshalJSON(nonNilMatches(outcome.Possible))
	if err != nil {
		return encodedOutcome{}, fmt.Errorf("encode possible matches: %w", err)
	}
	enc := encodedOutcome{payeeMatch: string(outcome.PayeeMatch), matched: matched, possible: possible}
	if outcome.Best != nil {
		enc.bestCandidate, enc.bestScore, enc.bestWindow = outcome.Best.Candidate, outcome.Best.Score, outcome.Best.Window
	}
	return enc, nil
}

func ocrOwnerTx(ctx context.Context, tx querier, ocrID string) (string, error) {
	var recordID string
	err := tx.QueryRowContext(ctx,
		"SELECT i.record_id FROM ocr_results o JOIN images i ON i.id = o.image_id WHERE o.id = ?", ocrID,
	).Scan(&recordID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", notFound("ocr result", ocrID)
	}
	if err != nil {
		return "", fmt.Errorf("resolve ocr owner: %w", err)
	}
	return recordID, nil
}

// payeeMatchAllowedTx rejects outcomes for a record that is not waiting for
// payee matching.
func payeeMatchAllowedTx(ctx context.Context, tx querier, recordID string) error {
	var current string
	err := tx.QueryRowContext(ctx, "SELECT status FROM records WHERE id = ?", recordID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return notFound("record", recordID)
	}
	if err != nil {
		return fmt.Errorf("read record status: %w", err)
	}
	if !CanTransition(Status(current), StatusPayeeMatchAttempted) {
		return &StateError{RecordID: recordID, Have: Status(current), Want: allowedFrom[StatusPayeeMatchAttempted]}
	}
	return nil
}

func pendingMatchesTx(ctx context.Context, tx querier, recordID string) (int, error) {
	var pending int
	err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM ocr_results o JOIN images i ON i.id = o.image_id
        WHERE i.record_id = ? AND o.payee_match = ?`, recordID, string(PayeeMatchPending),
	).Scan(&pending)
	if err != nil {
		return 0, fmt.Errorf("count pending payee matches: %w", err)
	}
	return pending, nil
}

func (s *Store) updatePayeeMatchTx(ctx context.Context, tx *sql.Tx, ocrID string, enc encodedOutcome) error {
	if _, err := tx.ExecContext(ctx, `UPDATE ocr_results
            SET payee_match = ?, matched_candidates = ?, possible_matches = ?,
                best_candidate = ?, best_score = ?, best_window = ?, updated_at = ?
            WHERE id = ?`,
		enc.payeeMatch, enc.matched, enc.possible, enc.bestCandidate, enc.bestScore, enc.bestWindow,
		formatTime(s.now()), ocrID,
	); err != nil {
		return fmt.Errorf("update payee match: %w", err)
	}
	return nil
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func nonNilMatches(values []PossibleMatch) []PossibleMatch {
	if values == nil {
		return []PossibleMatch{}
	}
	return values
}
