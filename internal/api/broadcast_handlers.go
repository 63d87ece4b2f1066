package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/organizer/sanctuary/internal/broadcast"
)

type broadcastRequestBody struct {
	Message        string   `json:"message"`
	CampaignName   string   `json:"campaignName"`
	ApprovedLinks  []string `json:"approvedLinks"`
	TargetAll      bool     `json:"targetAll"`
	TargetListIDs  []string `json:"targetListIds"`
	ExcludeListIDs []string `json:"excludeListIds"`
}

type broadcastTestRequestBody struct {
	broadcastRequestBody
	Phone string `json:"phone"`
}

const (
	maxSampleResults = 10
	maxSampleErrors  = 5
)

func (s *Server) handleBroadcastSend(w http.ResponseWriter, r *http.Request) {
	var body broadcastRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	summary, err := s.broadcaster.Send(r.Context(), broadcast.Request{
		DraftMessage:   body.Message,
		CampaignName:   body.CampaignName,
		ApprovedURLs:   body.ApprovedLinks,
		TargetAll:      body.TargetAll,
		TargetListIDs:  body.TargetListIDs,
		ExcludeListIDs: body.ExcludeListIDs,
	})
	if err != nil {
		writeDomainError(w, s.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, broadcastSummaryResponse(summary))
}

func (s *Server) handleBroadcastTest(w http.ResponseWriter, r *http.Request) {
	var body broadcastTestRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Phone == "" {
		writeJSONError(w, http.StatusBadRequest, "phone is required")
		return
	}

	summary, err := s.broadcaster.Send(r.Context(), broadcast.Request{
		DraftMessage:  body.Message,
		CampaignName:  body.CampaignName,
		ApprovedURLs:  body.ApprovedLinks,
		TestPhone:     body.Phone,
	})
	if err != nil {
		writeDomainError(w, s.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, broadcastSummaryResponse(summary))
}

func broadcastSummaryResponse(summary broadcast.Summary) map[string]any {
	results := summary.Results
	if len(results) > maxSampleResults {
		results = results[:maxSampleResults]
	}
	errs := summary.Errors
	if len(errs) > maxSampleErrors {
		errs = errs[:maxSampleErrors]
	}

	return map[string]any{
		"success":        summary.Failed == 0 || summary.SentTo > 0,
		"broadcastId":    summary.BroadcastID,
		"campaignName":   summary.CampaignName,
		"sentTo":         summary.SentTo,
		"failed":         summary.Failed,
		"totalCost":      fmt.Sprintf("%.2f", summary.TotalCost),
		"segmentCount":   summary.SegmentCount,
		"linksTracked":   summary.LinksTracked,
		"targetAll":      summary.TargetAll,
		"targetedLists":  summary.TargetedListCount,
		"results":        results,
		"errors":         errs,
	}
}
