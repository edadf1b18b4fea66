package render

import (
	"fmt"
	"time"

	"github.com/langerlad/bulk-ip-app/internal/domain"
)

// maxComments is how many reports the comment panel lists.
const maxComments = 10

// Clock pins the reference instant and display zone of one render pass.
type Clock struct {
	Now      time.Time
	Location *time.Location
}

func (c Clock) location() *time.Location {
	if c.Location == nil {
		return time.UTC
	}
	return c.Location
}

type StatusTag struct {
	Label string
	Class string
}

type CommentView struct {
	Reporter   string
	ReportedAt string
	Comment    string
	Categories []int
}

type CommentPanel struct {
	Entries   []CommentView
	Remaining int
	MoreNote  string
}

type RecordView struct {
	Index     int
	IPAddress string
	Failed    bool
	Error     string

	Score         int
	Severity      Severity
	Tags          []StatusTag
	Country       string
	ISP           string
	Domain        string
	UsageType     string
	Hostnames     string
	TotalReports  int
	DistinctUsers int
	LastReported  string

	CanToggleComments  bool
	CommentsVisible    bool
	CommentToggleLabel string
	Comments           *CommentPanel

	Network *NetworkView
}

// RenderRecord builds the display model of one record. Failed records carry
// only the address and the error message.
func RenderRecord(record domain.ReputationRecord, showComments, commentsVisible bool, clock Clock) RecordView {
	view := RecordView{IPAddress: record.IPAddress}

	if record.Failed() {
		view.Failed = true
		view.Error = *record.Error
		return view
	}

	view.Score = record.Score()
	view.Severity = ClassifySeverity(record.AbuseConfidenceScore)
	view.Tags = statusTags(record)
	view.Country = countryLabel(FormatOptionalList(record.CountryName), record.CountryCode)
	view.ISP = FormatOptionalList(record.ISP)
	view.Domain = FormatOptionalList(record.Domain)
	view.UsageType = FormatOptionalList(record.UsageType)
	view.Hostnames = FormatOptionalList(record.Hostnames)
	view.TotalReports = record.ReportCount()
	if record.NumDistinctUsers != nil {
		view.DistinctUsers = *record.NumDistinctUsers
	}
	view.LastReported = FormatTimestamp(record.LastReportedAt, clock.Now, clock.location())
	view.Network = RenderNetwork(record.Network)

	if showComments && len(record.Reports) > 0 {
		view.CanToggleComments = true
		view.CommentsVisible = commentsVisible
		if commentsVisible {
			view.CommentToggleLabel = fmt.Sprintf("Hide Comments (%d)", len(record.Reports))
			panel := RenderComments(record.Reports, clock)
			view.Comments = &panel
		} else {
			view.CommentToggleLabel = fmt.Sprintf("Show Comments (%d)", len(record.Reports))
		}
	}

	return view
}

// RenderComments lists the first reports in received order and notes how
// many were left out.
func RenderComments(reports []domain.Report, clock Clock) CommentPanel {
	shown := reports
	if len(shown) > maxComments {
		shown = shown[:maxComments]
	}

	panel := CommentPanel{Entries: make([]CommentView, 0, len(shown))}
	for _, report := range shown {
		reporter := "Unknown"
		if report.ReporterCountryName != nil && *report.ReporterCountryName != "" {
			reporter = *report.ReporterCountryName
		}

		comment := "No comment provided"
		if report.Comment != nil && *report.Comment != "" {
			comment = *report.Comment
		}

		panel.Entries = append(panel.Entries, CommentView{
			Reporter:   countryLabel(reporter, report.ReporterCountryCode),
			ReportedAt: FormatTimestamp(report.ReportedAt, clock.Now, clock.location()),
			Comment:    comment,
			Categories: report.Categories,
		})
	}

	if len(reports) > maxComments {
		panel.Remaining = len(reports) - maxComments
		panel.MoreNote = fmt.Sprintf("...and %d more reports", panel.Remaining)
	}

	return panel
}

func statusTags(record domain.ReputationRecord) []StatusTag {
	var tags []StatusTag
	if record.IsTor {
		tags = append(tags, StatusTag{Label: "Tor Exit Node", Class: "tor"})
	}
	if record.IsPrivate() {
		tags = append(tags, StatusTag{Label: "Private IP", Class: "private"})
	}
	if record.IsWhitelisted {
		tags = append(tags, StatusTag{Label: "Whitelisted", Class: "whitelisted"})
	}
	return tags
}

type StatusView struct {
	Visible       bool
	Remaining     int
	TotalLimit    int
	Tier          Tier
	NextReset     string
	HasNextReset  bool
	ClientIP      string
	ClientCountry string
	ClientHost    string
}

// RenderStatus builds the quota and client address panel. It is hidden when
// neither piece of information is known.
func RenderStatus(usage *domain.ApiUsageStatus, clientIP, clientCountry string) StatusView {
	view := StatusView{
		Visible:       usage != nil || clientIP != "",
		TotalLimit:    domain.DefaultDailyLimit,
		ClientIP:      clientIP,
		ClientCountry: clientCountry,
	}

	if usage != nil {
		if usage.TotalLimit > 0 {
			view.TotalLimit = usage.TotalLimit
		}
		view.Remaining = usage.RemainingRequests
		if usage.NextReset != nil && *usage.NextReset != "" {
			view.HasNextReset = true
			view.NextReset = FormatResetTime(*usage.NextReset) + " UTC"
		}
	}
	view.Tier = ClassifyUsageTier(view.Remaining)

	return view
}

type StatsView struct {
	Checked     int
	HasTiming   bool
	TimeTaken   string
	InvalidIPs  int
	ShowInvalid bool
}

type ResultsView struct {
	Status    StatusView
	Stats     StatsView
	ShowCSV   bool
	ShowHTML  bool
	Records   []RecordView
	NoResults bool
}

// RenderResults builds the whole results surface. visible holds the indexes
// of records whose comment panel is open.
func RenderResults(results *domain.ResultSet, showComments bool, visible map[int]bool, clientCountry string, clock Clock) ResultsView {
	view := ResultsView{
		Status:   RenderStatus(results.APIUsage, results.ClientIP, clientCountry),
		Stats:    StatsView{Checked: len(results.Data)},
		ShowCSV:  results.CSV,
		ShowHTML: results.HTML,
		Records:  make([]RecordView, 0, len(results.Data)),
	}

	if results.Stats != nil {
		view.Stats.HasTiming = true
		view.Stats.TimeTaken = fmt.Sprintf("%.2fs", results.Stats.TimeTaken)
		view.Stats.InvalidIPs = results.Stats.InvalidIPs
		view.Stats.ShowInvalid = results.Stats.InvalidIPs > 0
	}

	for i, record := range results.Data {
		recordView := RenderRecord(record, showComments, visible[i], clock)
		recordView.Index = i
		view.Records = append(view.Records, recordView)
	}
	view.NoResults = len(results.Data) == 0

	return view
}
