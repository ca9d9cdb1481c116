// Ark - BibleOS Tenant Backup, Retention, and Reminder Orchestration
// Copyright 2026 BibleOS Team
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bibleos/ark

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordBackup(t *testing.T) {
	before := testutil.ToFloat64(BackupRecordsExported)

	RecordBackup(2*time.Second, 150, nil, "")

	after := testutil.ToFloat64(BackupRecordsExported)
	if after-before != 150 {
		t.Errorf("exported counter delta = %v, want 150", after-before)
	}

	errBefore := testutil.ToFloat64(BackupErrors.WithLabelValues("upload"))
	RecordBackup(time.Second, 0, errors.New("upload failed"), "upload")
	errAfter := testutil.ToFloat64(BackupErrors.WithLabelValues("upload"))
	if errAfter-errBefore != 1 {
		t.Errorf("error counter delta = %v, want 1", errAfter-errBefore)
	}
}

func TestRecordRestore(t *testing.T) {
	before := testutil.ToFloat64(RestoreRecordsInserted)

	RecordRestore(time.Second, 42, nil, "")

	after := testutil.ToFloat64(RestoreRecordsInserted)
	if after-before != 42 {
		t.Errorf("inserted counter delta = %v, want 42", after-before)
	}

	errBefore := testutil.ToFloat64(RestoreErrors.WithLabelValues("version"))
	RecordRestore(0, 0, errors.New("unsupported version"), "version")
	errAfter := testutil.ToFloat64(RestoreErrors.WithLabelValues("version"))
	if errAfter-errBefore != 1 {
		t.Errorf("error counter delta = %v, want 1", errAfter-errBefore)
	}
}

func TestRecordDBQuery(t *testing.T) {
	errBefore := testutil.ToFloat64(DBQueryErrors.WithLabelValues("select", "sops"))
	RecordDBQuery("select", "sops", 5*time.Millisecond, errors.New("boom"))
	errAfter := testutil.ToFloat64(DBQueryErrors.WithLabelValues("select", "sops"))
	if errAfter-errBefore != 1 {
		t.Errorf("db error counter delta = %v, want 1", errAfter-errBefore)
	}

	RecordDBQuery("select", "sops", 5*time.Millisecond, nil)
}

func TestTrackActiveRequest(t *testing.T) {
	base := testutil.ToFloat64(APIActiveRequests)

	TrackActiveRequest(true)
	if got := testutil.ToFloat64(APIActiveRequests); got != base+1 {
		t.Errorf("active requests = %v, want %v", got, base+1)
	}

	TrackActiveRequest(false)
	if got := testutil.ToFloat64(APIActiveRequests); got != base {
		t.Errorf("active requests = %v, want %v", got, base)
	}
}
