package coda

// Doc identifies a document by its stable ID and display name.
type Doc struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Table identifies a table within a document.
type Table struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Cell is one column/value pair of an uploaded row. Absent fields are
// never sent as cells at all.
type Cell struct {
	Column string `json:"column"`
	Value  any    `json:"value"`
}

// Row is the wire form of one uploaded row.
type Row struct {
	Cells []Cell `json:"cells"`
}

type docList struct {
	Items []Doc `json:"items"`
}

type tableList struct {
	Items []Table `json:"items"`
}

type rowList struct {
	Items []rowRef `json:"items"`
}

type rowRef struct {
	ID string `json:"id"`
}

type deleteRowsRequest struct {
	RowIDs []string `json:"rowIds"`
}

type insertRowsRequest struct {
	Rows []Row `json:"rows"`
}
