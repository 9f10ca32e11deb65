package detail

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/and161185/jokbo/internal/api"
	"github.com/and161185/jokbo/internal/errs"
	"github.com/and161185/jokbo/internal/mockapi"
	"github.com/and161185/jokbo/internal/model"
	"github.com/and161185/jokbo/internal/nav"
)

// expiringView loads a material as a logged-in buyer through the real client, then
// swaps the session cookie for one the server rejects.
func expiringView(t *testing.T, purchased bool) (*View, *nav.Router, *fakeDialog) {
	t.Helper()
	srv := mockapi.New(mockapi.Config{SignKey: []byte("k"), Logger: zaptest.NewLogger(t)})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	st := srv.Store()
	author := st.AddUser("a@hufs.ac.kr", "작성자", "컴퓨터공학부", true)
	buyer := st.AddUser("b@hufs.ac.kr", "구매자", "컴퓨터공학부", true)
	id := st.AddMaterial(author, model.MaterialRequest{
		Title: "운영체제 기말", Year: 2024, Semester: 2, ProfessorName: "이교수",
		Grade: "3학년", CourseDivision: "전공", CourseName: "운영체제",
	}, []mockapi.File{{Name: "a.pdf", Data: []byte("%PDF")}, {Name: "b.pdf", Data: []byte("%PDF")}})
	if purchased {
		st.MarkPurchased(buyer, id)
	}

	router := nav.NewRouter(nav.Detail(id))
	c, err := api.New(ts.URL, api.WithLogger(zaptest.NewLogger(t)), api.WithNavigator(router))
	require.NoError(t, err)
	tok, _, err := srv.IssueSession(buyer)
	require.NoError(t, err)
	c.SetSessionCookie(srv.CookieName(), tok)

	dialog := &fakeDialog{answer: true}
	v := New(id, c, Deps{Nav: router, Dialog: dialog, Saver: &memSaver{}, Log: zaptest.NewLogger(t)})
	require.NoError(t, v.Load(context.Background()))

	c.SetSessionCookie(srv.CookieName(), "expired")
	return v, router, dialog
}

func TestPurchaseAfterSessionExpiredOnlyRedirects(t *testing.T) {
	v, router, dialog := expiringView(t, false)

	err := v.Purchase(context.Background())
	assert.ErrorIs(t, err, errs.ErrUnauthorized)
	assert.Empty(t, dialog.alerts)
	assert.Equal(t, nav.Login, router.Path())
	assert.Equal(t, RoleBuyerUnpurchased, v.State().Role)
	assert.Empty(t, v.State().Err)
}

func TestDownloadAfterSessionExpiredOnlyRedirects(t *testing.T) {
	v, router, dialog := expiringView(t, true)

	_, err := v.Download(context.Background())
	assert.ErrorIs(t, err, errs.ErrUnauthorized)
	assert.Empty(t, dialog.alerts)
	assert.Equal(t, nav.Login, router.Path())
}
