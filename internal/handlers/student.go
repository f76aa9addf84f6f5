package handlers

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"perfview/internal/api"
	"perfview/internal/upload"
)

type scoreCard struct {
	Topic   string
	Percent string
}

type studentView struct {
	Username      string
	Uploading     bool
	UploadMessage string
	UploadFailed  bool
	Scores        []scoreCard
}

func (h HandlerSet) StudentDashboard(c *gin.Context) {
	sess, _ := h.sessions.Snapshot()
	outcome := h.answers.Snapshot()

	var cards []scoreCard
	if outcome.State == upload.Succeeded && outcome.Scores != nil {
		topics := make([]string, 0, len(outcome.Scores))
		for topic := range outcome.Scores {
			topics = append(topics, topic)
		}
		sort.Strings(topics)
		for _, topic := range topics {
			cards = append(cards, scoreCard{
				Topic:   topic,
				Percent: fmt.Sprintf("%.1f", outcome.Scores[topic]),
			})
		}
	}

	c.HTML(http.StatusOK, "student.html", studentView{
		Username:      sess.Username,
		Uploading:     outcome.State == upload.InProgress,
		UploadMessage: outcome.Message,
		UploadFailed:  outcome.State == upload.Failed,
		Scores:        cards,
	})
}

func (h HandlerSet) UploadAnswer(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		h.log.Warn().Err(err).Msg("answer upload without file")
		c.Redirect(http.StatusSeeOther, "/student")
		return
	}
	defer file.Close()

	if err := h.answers.Begin(header.Filename); err != nil {
		c.Redirect(http.StatusSeeOther, "/student")
		return
	}

	scores, err := h.api.UploadAnswer(c.Request.Context(), header.Filename, file)
	if err != nil {
		h.answers.Fail(api.Message(err, "Upload failed"))
		c.Redirect(http.StatusSeeOther, "/student")
		return
	}

	if err := h.answers.SucceedScores("Answer sheet uploaded and analyzed successfully!", scores); err != nil {
		h.log.Error().Err(err).Msg("score payload rejected")
	}

	c.Redirect(http.StatusSeeOther, "/student")
}
