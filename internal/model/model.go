// Package model defines the entities exchanged with the marketplace backend.
// The client only ever holds transient view copies; the backend owns every record.
package model

// Price is the point cost of purchasing any material.
const Price = 200

// PageInfo describes a page of a paginated listing (1-based).
type PageInfo struct {
	CurrentPage int `json:"currentPage"`
	TotalPages  int `json:"totalPages"`
	TotalCount  int `json:"totalCount"`
}

// Attachment is one file belonging to a Material. Immutable once uploaded.
type Attachment struct {
	ID               int64  `json:"id"`
	OriginalFileName string `json:"originalFileName"`
	StoredFilePath   string `json:"storedFilePath"`
}

// Material is the full detail view of an uploaded study document.
type Material struct {
	ID             int64        `json:"materialId"`
	Title          string       `json:"title"`
	Year           int          `json:"year"`
	Semester       int          `json:"semester"`
	ProfessorName  string       `json:"professorName"`
	Grade          string       `json:"grade"`
	CourseDivision string       `json:"courseDivision"`
	CourseName     string       `json:"courseName"`
	Description    string       `json:"description"`
	AuthorName     string       `json:"authorName"`
	AuthorID       int64        `json:"authorId"`
	CreatedAt      string       `json:"createdAt"`
	UpdatedAt      string       `json:"updatedAt"`
	AvgRating      float64      `json:"avgRating"`
	ReviewCount    int          `json:"reviewCount"`
	DownloadCount  int          `json:"downloadCount"`
	Attachments    []Attachment `json:"attachments"`
}

// MaterialSummary is one row of a material listing.
type MaterialSummary struct {
	ID             int64  `json:"id"`
	Title          string `json:"title"`
	Year           int    `json:"year"`
	Semester       int    `json:"semester"`
	ProfessorName  string `json:"professorName"`
	Grade          string `json:"grade"`
	CourseDivision string `json:"courseDivision"`
	Major          string `json:"major,omitempty"`
	ReviewCount    int    `json:"reviewCount"`
	DownloadCount  int    `json:"downloadCount"`
}

// MaterialPage is a page of material summaries.
type MaterialPage struct {
	PageInfo  PageInfo          `json:"pageInfo"`
	Materials []MaterialSummary `json:"materials"`
}

// MaterialQuery holds the server-side list parameters. Zero values are omitted.
type MaterialQuery struct {
	Keyword  string
	Year     int
	Semester int
	SortBy   string
	Page     int
}

// MaterialRequest is the metadata sent on create and update.
type MaterialRequest struct {
	Title          string `json:"title" validate:"required"`
	Year           int    `json:"year" validate:"required"`
	Semester       int    `json:"semester" validate:"required"`
	ProfessorName  string `json:"professorName" validate:"required"`
	Grade          string `json:"grade" validate:"required"`
	CourseDivision string `json:"courseDivision" validate:"required"`
	CourseName     string `json:"courseName" validate:"required"`
	Description    string `json:"description"`
}

// MaterialCreateResult is returned after a successful upload.
type MaterialCreateResult struct {
	ID             int64  `json:"materialId"`
	Title          string `json:"title"`
	Year           int    `json:"year"`
	Semester       int    `json:"semester"`
	ProfessorName  string `json:"professorName"`
	Grade          string `json:"grade"`
	CourseDivision string `json:"courseDivision"`
	CourseName     string `json:"courseName"`
	Description    string `json:"description"`
	CreatedAt      string `json:"createdAt"`
	EarnedPoints   int    `json:"earnedPoints"`
	CurrentPoints  int    `json:"currentPoints"`
	PointMessage   string `json:"pointMessage"`
}

// MaterialUpdateResult is returned after a successful edit. ID may differ from the
// edited material's id; callers navigate to the returned one.
type MaterialUpdateResult struct {
	ID             int64  `json:"id"`
	Title          string `json:"title"`
	Year           int    `json:"year"`
	Semester       int    `json:"semester"`
	ProfessorName  string `json:"professorName"`
	Grade          string `json:"grade"`
	CourseDivision string `json:"courseDivision"`
	CourseName     string `json:"courseName"`
	Description    string `json:"description"`
	UpdatedAt      string `json:"updatedAt"`
}

// UploadFile is a file selected for upload.
type UploadFile struct {
	Name string
	Data []byte
}

// Download is a fetched attachment.
type Download struct {
	Filename string
	Data     []byte
}

// Review is one review of a material. Author reports whether the current viewer wrote it.
type Review struct {
	ID             int64   `json:"reviewId"`
	AuthorNickname string  `json:"authorNickname"`
	ReviewerEmail  string  `json:"reviewerEmail"`
	Rating         float64 `json:"rating"`
	Comment        string  `json:"comment"`
	CreatedAt      string  `json:"createdAt"`
	Author         bool    `json:"author"`
}

// ReviewRequest is the body of review create/update. MaterialID is omitted on update.
type ReviewRequest struct {
	MaterialID int64   `json:"materialId,omitempty"`
	Rating     float64 `json:"rating" validate:"gte=0,lte=5"`
	Comment    string  `json:"comment" validate:"required"`
}

// User is the current viewer's profile.
type User struct {
	ID         int64   `json:"userId,omitempty"`
	Nickname   string  `json:"nickname"`
	Major      string  `json:"major"`
	Minor      *string `json:"minor"`
	Email      string  `json:"email"`
	Onboarding bool    `json:"onboarding"`
}

// UserUpdate is the body of a profile edit.
type UserUpdate struct {
	Nickname string  `json:"nickname" validate:"required"`
	Major    string  `json:"major" validate:"required"`
	Minor    *string `json:"minor"`
}

// Onboarding is the body (and response) of the onboarding submission.
type Onboarding struct {
	Major string  `json:"major" validate:"required"`
	Minor *string `json:"minor"`
}

// PointRequest is the body of a point use/earn call.
type PointRequest struct {
	Amount int    `json:"amount"`
	Reason string `json:"reason"`
}

// PointEntry is a ledger entry or, for the balance call, the current amount.
type PointEntry struct {
	Amount    int    `json:"amount"`
	Reason    string `json:"reason"`
	CreatedAt string `json:"createdAt"`
	Email     string `json:"email"`
}
