// Package vulkan adapts Vulkan result codes to the native device surface.
package vulkan

import (
	"sync"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/continuum/engine/renderer/native"
)

// ToNative converts a Vulkan result into a native result. The numbering is
// shared, so codes the native layer knows pass through unchanged; every
// other failure becomes ResultErrorUnknown and every other success
// ResultSuccess.
func ToNative(result vk.Result) native.Result {
	switch result {
	case vk.Success:
		return native.ResultSuccess
	case vk.NotReady, vk.Timeout, vk.Incomplete, vk.Suboptimal:
		return native.ResultNotReady
	case vk.ErrorOutOfHostMemory, vk.ErrorOutOfPoolMemory, vk.ErrorFragmentedPool, vk.ErrorFragmentation:
		return native.ResultErrorOutOfHostMemory
	case vk.ErrorOutOfDeviceMemory, vk.ErrorMemoryMapFailed:
		return native.ResultErrorOutOfDeviceMem
	case vk.ErrorInitializationFailed, vk.ErrorLayerNotPresent, vk.ErrorExtensionNotPresent,
		vk.ErrorFeatureNotPresent, vk.ErrorIncompatibleDriver:
		return native.ResultErrorInitFailed
	case vk.ErrorDeviceLost, vk.ErrorSurfaceLost:
		return native.ResultErrorDeviceLost
	case vk.ErrorTooManyObjects:
		return native.ResultErrorTooManyObjects
	case vk.ErrorFormatNotSupported:
		return native.ResultErrorFormatNotSupp
	case vk.ErrorOutOfDate, vk.ErrorFullScreenExclusiveModeLost:
		return native.ResultErrorOutOfDate
	}
	if IsSuccess(result) {
		return native.ResultSuccess
	}
	return native.ResultErrorUnknown
}

// IsSuccess reports whether result is one of the Vulkan success codes.
func IsSuccess(result vk.Result) bool {
	switch result {
	case vk.Success, vk.NotReady, vk.Timeout, vk.EventSet, vk.EventReset,
		vk.Incomplete, vk.Suboptimal, vk.ThreadIdle, vk.ThreadDone,
		vk.OperationDeferred, vk.OperationNotDeferred, vk.PipelineCompileRequired:
		return true
	}
	return result >= 0
}

// ResultString returns the Vulkan name of result, with a short description
// when extended is set.
func ResultString(result vk.Result, extended bool) string {
	name, desc := describe(result)
	if !extended {
		return name
	}
	return name + " " + desc
}

func describe(result vk.Result) (string, string) {
	switch result {
	case vk.Success:
		return "VK_SUCCESS", "command completed"
	case vk.NotReady:
		return "VK_NOT_READY", "fence or query not completed yet"
	case vk.Timeout:
		return "VK_TIMEOUT", "wait did not complete in time"
	case vk.Incomplete:
		return "VK_INCOMPLETE", "return array too small"
	case vk.Suboptimal:
		return "VK_SUBOPTIMAL_KHR", "swapchain no longer matches the surface exactly"
	case vk.ErrorOutOfHostMemory:
		return "VK_ERROR_OUT_OF_HOST_MEMORY", "host allocation failed"
	case vk.ErrorOutOfDeviceMemory:
		return "VK_ERROR_OUT_OF_DEVICE_MEMORY", "device allocation failed"
	case vk.ErrorInitializationFailed:
		return "VK_ERROR_INITIALIZATION_FAILED", "object initialization failed"
	case vk.ErrorDeviceLost:
		return "VK_ERROR_DEVICE_LOST", "logical or physical device lost"
	case vk.ErrorMemoryMapFailed:
		return "VK_ERROR_MEMORY_MAP_FAILED", "memory map failed"
	case vk.ErrorTooManyObjects:
		return "VK_ERROR_TOO_MANY_OBJECTS", "object limit reached"
	case vk.ErrorFormatNotSupported:
		return "VK_ERROR_FORMAT_NOT_SUPPORTED", "format not supported"
	case vk.ErrorSurfaceLost:
		return "VK_ERROR_SURFACE_LOST_KHR", "surface no longer available"
	case vk.ErrorOutOfDate:
		return "VK_ERROR_OUT_OF_DATE_KHR", "surface changed, swapchain must be recreated"
	case vk.ErrorOutOfPoolMemory:
		return "VK_ERROR_OUT_OF_POOL_MEMORY", "pool allocation failed"
	case vk.ErrorFullScreenExclusiveModeLost:
		return "VK_ERROR_FULL_SCREEN_EXCLUSIVE_MODE_LOST_EXT", "exclusive full screen access lost"
	case vk.ErrorUnknown:
		return "VK_ERROR_UNKNOWN", "unknown error"
	}
	if IsSuccess(result) {
		return "VK_SUCCESS_OTHER", "success code"
	}
	return "VK_ERROR_OTHER", "unclassified error"
}

// StatusTracker folds the results of presentation and submission calls
// into the lost/reset status the device reports. Loss is sticky until
// Clear is called after a successful reset.
type StatusTracker struct {
	mu     sync.Mutex
	status native.DeviceStatus
}

// Observe records result and returns the status after it.
func (t *StatusTracker) Observe(result vk.Result) native.DeviceStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch result {
	case vk.ErrorDeviceLost, vk.ErrorSurfaceLost:
		t.status = native.StatusLost
	case vk.ErrorOutOfDate, vk.Suboptimal, vk.ErrorFullScreenExclusiveModeLost:
		if t.status == native.StatusNormal {
			t.status = native.StatusNeedsReset
		}
	}
	return t.status
}

// Recoverable moves a lost device to the needs-reset state.
func (t *StatusTracker) Recoverable() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status == native.StatusLost {
		t.status = native.StatusNeedsReset
	}
}

func (t *StatusTracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = native.StatusNormal
}

func (t *StatusTracker) QueryDeviceStatus() native.DeviceStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}
