//go:build windows

package winproc

import (
	"testing"

	"golang.org/x/sys/windows"

	"github.com/stretchr/testify/assert"
)

func TestMbiSafetyCheck_ReadOnlyPageIsSafeForRead(t *testing.T) {
	mask := mbiSafetyCheck(windows.MEM_COMMIT, windows.PAGE_READONLY, windows.MEM_PRIVATE, false)
	assert.Zero(t, mask)
}

func TestMbiSafetyCheck_GuardPageFailsRead(t *testing.T) {
	mask := mbiSafetyCheck(windows.MEM_COMMIT, windows.PAGE_READWRITE|windows.PAGE_GUARD, windows.MEM_PRIVATE, false)
	assert.NotZero(t, mask&invalidProtectionFlags)
}

func TestMbiSafetyCheck_NoAccessFailsRead(t *testing.T) {
	mask := mbiSafetyCheck(windows.MEM_COMMIT, windows.PAGE_NOACCESS, windows.MEM_PRIVATE, false)
	assert.NotZero(t, mask&invalidProtectionFlags)
}

func TestMbiSafetyCheck_ReadOnlyPageFailsForWrite(t *testing.T) {
	mask := mbiSafetyCheck(windows.MEM_COMMIT, windows.PAGE_READONLY, windows.MEM_PRIVATE, true)
	assert.NotZero(t, mask&invalidProtectionFlags)
}

func TestMbiSafetyCheck_ReadWriteCommittedPrivatePassesForWrite(t *testing.T) {
	mask := mbiSafetyCheck(windows.MEM_COMMIT, windows.PAGE_READWRITE, windows.MEM_PRIVATE, true)
	assert.Zero(t, mask)
}

func TestMbiSafetyCheck_UncommittedFailsForWrite(t *testing.T) {
	mask := mbiSafetyCheck(windows.MEM_RESERVE, windows.PAGE_READWRITE, windows.MEM_PRIVATE, true)
	assert.NotZero(t, mask&invalidAllocationType)
}

func TestMbiSafetyCheck_ZeroPageTypeFailsForWrite(t *testing.T) {
	mask := mbiSafetyCheck(windows.MEM_COMMIT, windows.PAGE_READWRITE, 0, true)
	assert.NotZero(t, mask&invalidPageType)
}

func TestMbiSafetyCheck_PrivateWriteCopyFailsForWrite(t *testing.T) {
	mask := mbiSafetyCheck(windows.MEM_COMMIT, windows.PAGE_WRITECOPY, windows.MEM_PRIVATE, true)
	assert.NotZero(t, mask&invalidPageType)
}
