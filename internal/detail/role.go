package detail

// Role is the viewer's relation to the material.
type Role int

const (
	RoleBuyerUnpurchased Role = iota
	RoleBuyerPurchased
	RoleAuthor
)

func (r Role) String() string {
	switch r {
	case RoleAuthor:
		return "author"
	case RoleBuyerPurchased:
		return "buyer-purchased"
	default:
		return "buyer-unpurchased"
	}
}

// Action is a user-triggered operation on the detail screen.
type Action int

const (
	ActionPurchase Action = iota
	ActionDownload
	ActionEdit
	ActionDelete
	ActionReview
)

func (a Action) String() string {
	switch a {
	case ActionPurchase:
		return "purchase"
	case ActionDownload:
		return "download"
	case ActionEdit:
		return "edit"
	case ActionDelete:
		return "delete"
	case ActionReview:
		return "review"
	}
	return "unknown"
}

var allowed = map[Role]map[Action]bool{
	RoleAuthor:           {ActionDownload: true, ActionEdit: true, ActionDelete: true},
	RoleBuyerUnpurchased: {ActionPurchase: true},
	RoleBuyerPurchased:   {ActionDownload: true, ActionReview: true},
}

// Allows reports whether a is legal for r.
func (r Role) Allows(a Action) bool { return allowed[r][a] }

// Actions lists the legal actions of r in display order.
func (r Role) Actions() []Action {
	var out []Action
	for _, a := range []Action{ActionPurchase, ActionDownload, ActionEdit, ActionDelete, ActionReview} {
		if r.Allows(a) {
			out = append(out, a)
		}
	}
	return out
}

// Primary is the label of the main button.
func (r Role) Primary() string {
	if r == RoleBuyerUnpurchased {
		return "구매"
	}
	return "다운로드"
}

// roleOf derives the role. Authorship compares ids when both sides carry one and
// falls back to the nickname otherwise.
func roleOf(viewerID int64, viewerNick string, authorID int64, authorName string, purchased bool) Role {
	var author bool
	if viewerID != 0 && authorID != 0 {
		author = viewerID == authorID
	} else {
		author = viewerNick != "" && viewerNick == authorName
	}
	switch {
	case author:
		return RoleAuthor
	case purchased:
		return RoleBuyerPurchased
	default:
		return RoleBuyerUnpurchased
	}
}
