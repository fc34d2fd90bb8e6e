package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"newsreel/internal/api"
	"newsreel/internal/queue"
)

var statusTitler = cases.Title(language.English)

func buildQueueStatusRows(stats map[string]int) [][]string {
	if len(stats) == 0 {
		return nil
	}
	rows := make([][]string, 0, len(stats))
	for _, status := range queue.AllStatuses() {
		count, ok := stats[string(status)]
		if !ok {
			continue
		}
		rows = append(rows, []string{formatStatusLabel(string(status)), strconv.Itoa(count)})
	}
	return rows
}

func buildQueueListRows(jobs []api.Job) [][]string {
	if len(jobs) == 0 {
		return nil
	}
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		title := strings.TrimSpace(job.Title)
		if title == "" {
			title = "Untitled"
		}
		rows = append(rows, []string{
			strconv.FormatInt(job.ID, 10),
			title,
			formatStatusLabel(job.Status),
			formatNextStep(job),
			formatDisplayTime(job.CreatedAt),
		})
	}
	return rows
}

func formatStatusLabel(status string) string {
	status = strings.TrimSpace(status)
	if status == "" {
		return ""
	}
	return statusTitler.String(strings.ReplaceAll(status, "_", " "))
}

func formatNextStep(job api.Job) string {
	switch {
	case job.LockedBy != "":
		return "running on " + job.LockedBy
	case job.NextAttemptAt != "":
		return fmt.Sprintf("%s retry at %s", job.NextStage, formatDisplayTime(job.NextAttemptAt))
	case job.NextStage != "":
		return job.NextStage
	case job.FailedStage != "":
		return "stopped at " + job.FailedStage
	default:
		return "-"
	}
}

func formatDisplayTime(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "-"
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return value
	}
	return t.Local().Format("2006-01-02 15:04")
}

func jobDetailLines(job api.Job) [][2]string {
	lines := [][2]string{
		{"ID", strconv.FormatInt(job.ID, 10)},
		{"Title", job.Title},
		{"URL", job.URL},
		{"Source", job.Source},
		{"Status", formatStatusLabel(job.Status)},
		{"Next step", formatNextStep(job)},
		{"Created", formatDisplayTime(job.CreatedAt)},
		{"Updated", formatDisplayTime(job.UpdatedAt)},
		{"Retries", fmt.Sprintf("script=%d audio=%d images=%d assembly=%d distribution=%d",
			job.Retries.Script, job.Retries.Audio, job.Retries.Images, job.Retries.Assembly, job.Retries.Distribution)},
	}
	a := job.Artifacts
	if a.ScriptWords > 0 {
		lines = append(lines, [2]string{"Script", fmt.Sprintf("%d words, %d visual prompts", a.ScriptWords, a.VisualPrompts)})
	}
	if a.AudioPath != "" {
		lines = append(lines, [2]string{"Audio", fmt.Sprintf("%s (%.1fs, %d cues)", a.AudioPath, a.AudioSeconds, a.Cues)})
	}
	if len(a.ImagePaths) > 0 {
		lines = append(lines, [2]string{"Images", strconv.Itoa(len(a.ImagePaths))})
	}
	if a.VideoPath != "" {
		lines = append(lines, [2]string{"Video", a.VideoPath})
	}
	if a.VideoObjectKey != "" {
		lines = append(lines, [2]string{"Object key", a.VideoObjectKey})
	}
	if job.RemoteID != "" {
		lines = append(lines, [2]string{"Remote ID", job.RemoteID})
	}
	if job.DistributionError != "" {
		lines = append(lines, [2]string{"Upload error", job.DistributionError})
		lines = append(lines, [2]string{"Fallback sent", yesNo(job.FallbackNotified)})
	}
	if job.ErrorMessage != "" {
		lines = append(lines, [2]string{"Error", fmt.Sprintf("[%s] %s", job.ErrorKind, job.ErrorMessage)})
	}
	return lines
}
