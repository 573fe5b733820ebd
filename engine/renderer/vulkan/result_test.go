package vulkan

import (
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/assert"

	"github.com/spaghettifunk/continuum/engine/renderer/native"
)

func TestToNative(t *testing.T) {
	tests := []struct {
		in   vk.Result
		want native.Result
	}{
		{vk.Success, native.ResultSuccess},
		{vk.Suboptimal, native.ResultNotReady},
		{vk.ErrorOutOfHostMemory, native.ResultErrorOutOfHostMemory},
		{vk.ErrorOutOfDeviceMemory, native.ResultErrorOutOfDeviceMem},
		{vk.ErrorDeviceLost, native.ResultErrorDeviceLost},
		{vk.ErrorOutOfDate, native.ResultErrorOutOfDate},
		{vk.ErrorFormatNotSupported, native.ResultErrorFormatNotSupp},
		{vk.ErrorUnknown, native.ResultErrorUnknown},
	}
	for _, tt := range tests {
		t.Run(ResultString(tt.in, false), func(t *testing.T) {
			got := ToNative(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, IsSuccess(tt.in), got.Succeeded())
		})
	}
}

func TestResultString(t *testing.T) {
	assert.Equal(t, "VK_ERROR_DEVICE_LOST", ResultString(vk.ErrorDeviceLost, false))
	assert.Contains(t, ResultString(vk.ErrorDeviceLost, true), "device lost")
}

func TestStatusTracker(t *testing.T) {
	var tr StatusTracker
	assert.Equal(t, native.StatusNormal, tr.QueryDeviceStatus())

	assert.Equal(t, native.StatusNeedsReset, tr.Observe(vk.ErrorOutOfDate))
	assert.Equal(t, native.StatusLost, tr.Observe(vk.ErrorDeviceLost))
	assert.Equal(t, native.StatusLost, tr.Observe(vk.Success), "loss is sticky")
	assert.Equal(t, native.StatusLost, tr.Observe(vk.ErrorOutOfDate))

	tr.Recoverable()
	assert.Equal(t, native.StatusNeedsReset, tr.QueryDeviceStatus())

	tr.Clear()
	assert.Equal(t, native.StatusNormal, tr.QueryDeviceStatus())
}
