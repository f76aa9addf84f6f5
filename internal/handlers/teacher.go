package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"perfview/internal/analytics"
	"perfview/internal/api"
	"perfview/internal/codes"
	"perfview/internal/upload"
)

type teacherView struct {
	Username      string
	Code          string
	CodeExpires   string
	IssueErr      string
	Uploading     bool
	UploadMessage string
	UploadFailed  bool
	Analytics     []analytics.Row
}

// TeacherDashboard refreshes the code panel and the analytics before
// rendering. The two fetches are independent; either failing is logged
// and leaves its panel showing the previous state.
func (h HandlerSet) TeacherDashboard(c *gin.Context) {
	sess, _ := h.sessions.Snapshot()

	h.codes.FetchCurrent(c.Request.Context())
	h.analytics.Refresh(c.Request.Context())

	display := h.codes.Snapshot()
	outcome := h.syllabus.Snapshot()

	c.HTML(http.StatusOK, "teacher.html", teacherView{
		Username:      sess.Username,
		Code:          display.Code,
		CodeExpires:   codes.FormatExpiry(display.ExpiresAt),
		IssueErr:      display.IssueErr,
		Uploading:     outcome.State == upload.InProgress,
		UploadMessage: outcome.Message,
		UploadFailed:  outcome.State == upload.Failed,
		Analytics:     h.analytics.Snapshot(),
	})
}

func (h HandlerSet) GenerateCode(c *gin.Context) {
	h.codes.Issue(c.Request.Context())
	c.Redirect(http.StatusSeeOther, "/teacher")
}

func (h HandlerSet) UploadSyllabus(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		h.log.Warn().Err(err).Msg("syllabus upload without file")
		c.Redirect(http.StatusSeeOther, "/teacher")
		return
	}
	defer file.Close()

	if err := h.syllabus.Begin(header.Filename); err != nil {
		c.Redirect(http.StatusSeeOther, "/teacher")
		return
	}

	topics, err := h.api.UploadSyllabus(c.Request.Context(), header.Filename, file)
	if err != nil {
		h.syllabus.Fail(api.Message(err, "Upload failed"))
		c.Redirect(http.StatusSeeOther, "/teacher")
		return
	}

	h.syllabus.SucceedTopics(
		fmt.Sprintf("Syllabus uploaded successfully! Extracted %d topics.", len(topics)),
		topics,
	)

	// A new syllabus changes the topic set analytics is computed over.
	h.analytics.Refresh(c.Request.Context())

	c.Redirect(http.StatusSeeOther, "/teacher")
}
