package domain

type Stats struct {
	TimeTaken  float64 `json:"time_taken"`
	TotalIPs   int     `json:"total_ips"`
	InvalidIPs int     `json:"invalid_ips"`
}

type ResultSet struct {
	Data         []ReputationRecord `json:"data"`
	ClientIP     string             `json:"client_ip"`
	APIUsage     *ApiUsageStatus    `json:"api_usage,omitempty"`
	Stats        *Stats             `json:"stats,omitempty"`
	CSVFilename  *string            `json:"csv_filename,omitempty"`
	HTMLFilename *string            `json:"html_filename,omitempty"`
	CSV          bool               `json:"csv"`
	HTML         bool               `json:"html"`
	Comments     bool               `json:"comments"`
}

// Normalize applies defaults so render code never has to re-check the
// backend's shape.
func (rs *ResultSet) Normalize() {
	if rs.Data == nil {
		rs.Data = []ReputationRecord{}
	}
	for i := range rs.Data {
		rs.Data[i].normalize()
	}
	if rs.APIUsage != nil {
		rs.APIUsage.normalize()
	}
	if rs.CSVFilename != nil && *rs.CSVFilename == "" {
		rs.CSVFilename = nil
	}
	if rs.HTMLFilename != nil && *rs.HTMLFilename == "" {
		rs.HTMLFilename = nil
	}
}

// Addresses returns the queried addresses in result order.
func (rs *ResultSet) Addresses() []string {
	out := make([]string, 0, len(rs.Data))
	for _, record := range rs.Data {
		out = append(out, record.IPAddress)
	}
	return out
}

// ExportFilename returns the generated export name for a file type, if any.
func (rs *ResultSet) ExportFilename(fileType string) (string, bool) {
	var name *string
	switch fileType {
	case "csv":
		name = rs.CSVFilename
	case "html":
		name = rs.HTMLFilename
	}
	if name == nil || *name == "" {
		return "", false
	}
	return *name, true
}
