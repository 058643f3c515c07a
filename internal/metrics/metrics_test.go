package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectorsAreRegistered(t *testing.T) {
	EventsRoutedTotal.WithLabelValues("OtaNewPackage").Inc()
	if got := testutil.ToFloat64(EventsRoutedTotal.WithLabelValues("OtaNewPackage")); got != 1 {
		t.Errorf("EventsRoutedTotal = %v, want 1", got)
	}

	AdminSessionOpen.Set(1)
	if got := testutil.ToFloat64(AdminSessionOpen); got != 1 {
		t.Errorf("AdminSessionOpen = %v, want 1", got)
	}
}
