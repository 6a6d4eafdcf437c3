package api

import (
	"encoding/json"
	"testing"
)

func TestDecodeError(t *testing.T) {
	body, err := json.Marshal(ErrorResponse{
		Error:     "5 photos per minute reached",
		Code:      "resource_exhausted",
		ErrorCode: 3005,
		Advisory:  &AdvisoryInfo{Urgency: "high", Message: "Upgrade for a higher ceiling.", SuggestedTier: "pro"},
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	apiErr := DecodeError(429, body)
	if apiErr.Status != 429 || apiErr.ErrorCode != 3005 {
		t.Fatalf("unexpected decode: %+v", apiErr)
	}
	if apiErr.Error() != "resource_exhausted: 5 photos per minute reached" {
		t.Fatalf("unexpected error string: %s", apiErr.Error())
	}
	if apiErr.Advisory == nil || apiErr.Advisory.SuggestedTier != "pro" {
		t.Fatalf("advisory not carried: %+v", apiErr.Advisory)
	}
}

func TestDecodeErrorMalformedBody(t *testing.T) {
	apiErr := DecodeError(502, []byte("upstream said no"))
	if apiErr.Status != 502 {
		t.Fatalf("status = %d", apiErr.Status)
	}
	if apiErr.Error() != "api error: status 502" {
		t.Fatalf("unexpected error string: %s", apiErr.Error())
	}
}
