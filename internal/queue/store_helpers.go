package queue

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"newsreel/internal/services"
	"newsreel/internal/subtitles"
)

const jobColumns = "id, url, title, description, source, published_at, status, script_text, visual_prompts_json, audio_path, audio_duration_ms, subtitle_cues_json, image_paths_json, video_path, video_object_key, remote_id, distribution_error, fallback_notified, script_retries, audio_retries, images_retries, assembly_retries, distribution_retries, error_kind, error_message, failed_stage, next_attempt_at, locked_by, locked_at, created_at, updated_at"

// timeLayout is fixed width so timestamps compare correctly as strings in SQL.
const timeLayout = "2006-01-02T15:04:05.000000Z"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id                int64
		url               string
		title             string
		description       string
		source            string
		publishedRaw      sql.NullString
		statusStr         string
		scriptText        sql.NullString
		promptsJSON       sql.NullString
		audioPath         sql.NullString
		audioDurationMS   sql.NullInt64
		cuesJSON          sql.NullString
		imagesJSON        sql.NullString
		videoPath         sql.NullString
		videoObjectKey    sql.NullString
		remoteID          sql.NullString
		distributionError sql.NullString
		fallbackNotified  int64
		retries           Retries
		errorKind         sql.NullString
		errorMessage      sql.NullString
		failedStage       sql.NullString
		nextAttemptRaw    sql.NullString
		lockedBy          sql.NullString
		lockedAtRaw       sql.NullString
		createdRaw        string
		updatedRaw        string
	)

	if err := scanner.Scan(
		&id,
		&url,
		&title,
		&description,
		&source,
		&publishedRaw,
		&statusStr,
		&scriptText,
		&promptsJSON,
		&audioPath,
		&audioDurationMS,
		&cuesJSON,
		&imagesJSON,
		&videoPath,
		&videoObjectKey,
		&remoteID,
		&distributionError,
		&fallbackNotified,
		&retries.Script,
		&retries.Audio,
		&retries.Images,
		&retries.Assembly,
		&retries.Distribution,
		&errorKind,
		&errorMessage,
		&failedStage,
		&nextAttemptRaw,
		&lockedBy,
		&lockedAtRaw,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:                id,
		URL:               url,
		Title:             title,
		Description:       description,
		Source:            source,
		Status:            Status(statusStr),
		Script:            scriptText.String,
		AudioPath:         audioPath.String,
		AudioDuration:     time.Duration(audioDurationMS.Int64) * time.Millisecond,
		VideoPath:         videoPath.String,
		VideoObjectKey:    videoObjectKey.String,
		RemoteID:          remoteID.String,
		DistributionError: distributionError.String,
		FallbackNotified:  fallbackNotified != 0,
		Retries:           retries,
		ErrorKind:         services.ParseKind(errorKind.String),
		ErrorMessage:      errorMessage.String,
		FailedStage:       Stage(failedStage.String),
		LockedBy:          lockedBy.String,
	}
	if err := decodeJSONColumn(promptsJSON, &job.VisualPrompts); err != nil {
		return nil, fmt.Errorf("decode visual prompts: %w", err)
	}
	if err := decodeJSONColumn(cuesJSON, &job.Cues); err != nil {
		return nil, fmt.Errorf("decode subtitle cues: %w", err)
	}
	if err := decodeJSONColumn(imagesJSON, &job.ImagePaths); err != nil {
		return nil, fmt.Errorf("decode image paths: %w", err)
	}
	job.PublishedAt = parseNullableTime(publishedRaw)
	job.NextAttemptAt = parseNullableTime(nextAttemptRaw)
	job.LockedAt = parseNullableTime(lockedAtRaw)
	if created, err := parseTimeString(createdRaw); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		job.UpdatedAt = updated
	}
	return job, nil
}

func decodeJSONColumn(value sql.NullString, target any) error {
	if !value.Valid || value.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(value.String), target)
}

func encodeStrings(values []string) (any, error) {
	if len(values) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(values)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func encodeCues(cues []subtitles.Cue) (any, error) {
	if len(cues) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(cues)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil || value.IsZero() {
		return nil
	}
	return formatTime(*value)
}

func formatTime(value time.Time) string {
	return value.UTC().Format(timeLayout)
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseNullableTime(value sql.NullString) *time.Time {
	if !value.Valid {
		return nil
	}
	parsed, err := parseTimeString(value.String)
	if err != nil {
		return nil
	}
	return &parsed
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(timeLayout, value); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}

// RedactDSN hides the password in a postgres connection URL.
func RedactDSN(dsn string) string {
	parsed, err := url.Parse(dsn)
	if err != nil || parsed.User == nil {
		return dsn
	}
	if _, ok := parsed.User.Password(); ok {
		parsed.User = url.UserPassword(parsed.User.Username(), "xxxxx")
	}
	return parsed.String()
}
