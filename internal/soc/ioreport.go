package soc

/*
#cgo CFLAGS: -x objective-c
#cgo LDFLAGS: -framework CoreFoundation -framework IOKit -framework Foundation -lIOReport
#include <CoreFoundation/CoreFoundation.h>
#include <IOKit/IOKitLib.h>
#include <stdint.h>
#include <string.h>
#include <stdlib.h>

typedef struct IOReportSubscriptionRef* IOReportSubscriptionRef;

extern CFDictionaryRef IOReportCopyChannelsInGroup(CFStringRef group, CFStringRef subgroup, uint64_t a, uint64_t b, uint64_t c);
extern void IOReportMergeChannels(CFDictionaryRef a, CFDictionaryRef b, CFTypeRef unused);
extern IOReportSubscriptionRef IOReportCreateSubscription(void* a, CFMutableDictionaryRef channels, CFMutableDictionaryRef* out, uint64_t d, CFTypeRef e);
extern CFDictionaryRef IOReportCreateSamples(IOReportSubscriptionRef sub, CFMutableDictionaryRef channels, CFTypeRef unused);
extern CFDictionaryRef IOReportCreateSamplesDelta(CFDictionaryRef a, CFDictionaryRef b, CFTypeRef unused);
extern int64_t IOReportSimpleGetIntegerValue(CFDictionaryRef item, int32_t idx);
extern CFStringRef IOReportChannelGetGroup(CFDictionaryRef item);
extern CFStringRef IOReportChannelGetSubGroup(CFDictionaryRef item);
extern CFStringRef IOReportChannelGetChannelName(CFDictionaryRef item);
extern CFStringRef IOReportChannelGetUnitLabel(CFDictionaryRef item);
extern int32_t IOReportStateGetCount(CFDictionaryRef item);
extern CFStringRef IOReportStateGetNameForIndex(CFDictionaryRef item, int32_t idx);
extern int64_t IOReportStateGetResidency(CFDictionaryRef item, int32_t idx);

#define SOC_MAX_CHANNELS 1024
#define SOC_MAX_STATES 32
#define SOC_LABEL_LEN 64
#define SOC_NAME_LEN 128
#define SOC_UNIT_LEN 32
#define SOC_STATE_NAME_LEN 48

typedef struct {
	char group[SOC_LABEL_LEN];
	char subgroup[SOC_LABEL_LEN];
	char name[SOC_NAME_LEN];
	char unit[SOC_UNIT_LEN];
	int32_t state_count;
	int64_t simple;
	int64_t residencies[SOC_MAX_STATES];
	char state_names[SOC_MAX_STATES][SOC_STATE_NAME_LEN];
} soc_channel_t;

// Channel accessors follow the get rule; nothing here is released.
static void soc_copy_cfstring(CFStringRef s, char *buf, size_t len) {
	buf[0] = '\0';
	if (s != NULL) {
		CFStringGetCString(s, buf, len, kCFStringEncodingUTF8);
	}
}

static void soc_fill_channel(CFDictionaryRef item, soc_channel_t *out) {
	memset(out, 0, sizeof(*out));
	soc_copy_cfstring(IOReportChannelGetGroup(item), out->group, sizeof(out->group));
	soc_copy_cfstring(IOReportChannelGetSubGroup(item), out->subgroup, sizeof(out->subgroup));
	soc_copy_cfstring(IOReportChannelGetChannelName(item), out->name, sizeof(out->name));
	soc_copy_cfstring(IOReportChannelGetUnitLabel(item), out->unit, sizeof(out->unit));

	int32_t states = IOReportStateGetCount(item);
	if (states > SOC_MAX_STATES) {
		states = SOC_MAX_STATES;
	}
	out->state_count = states;
	for (int32_t i = 0; i < states; i++) {
		soc_copy_cfstring(IOReportStateGetNameForIndex(item, i), out->state_names[i], SOC_STATE_NAME_LEN);
		out->residencies[i] = IOReportStateGetResidency(item, i);
	}
	if (states <= 0) {
		out->simple = IOReportSimpleGetIntegerValue(item, 0);
	}
}

// The channel list inside a sample is a CFArray on current builds but
// has shipped as a CFDictionary keyed by driver id; both are walked.
static int soc_collect_channels(CFDictionaryRef sample, soc_channel_t *out, int max) {
	if (sample == NULL) {
		return -1;
	}
	CFTypeRef raw = CFDictionaryGetValue(sample, CFSTR("IOReportChannels"));
	if (raw == NULL) {
		return -1;
	}

	int n = 0;
	if (CFGetTypeID(raw) == CFArrayGetTypeID()) {
		CFArrayRef list = (CFArrayRef)raw;
		CFIndex count = CFArrayGetCount(list);
		for (CFIndex i = 0; i < count && n < max; i++) {
			CFTypeRef item = CFArrayGetValueAtIndex(list, i);
			if (item == NULL || CFGetTypeID(item) != CFDictionaryGetTypeID()) {
				continue;
			}
			soc_fill_channel((CFDictionaryRef)item, &out[n++]);
		}
		return n;
	}
	if (CFGetTypeID(raw) == CFDictionaryGetTypeID()) {
		CFDictionaryRef dict = (CFDictionaryRef)raw;
		CFIndex count = CFDictionaryGetCount(dict);
		if (count <= 0) {
			return 0;
		}
		const void **values = malloc(sizeof(void *) * count);
		if (values == NULL) {
			return -1;
		}
		CFDictionaryGetKeysAndValues(dict, NULL, values);
		for (CFIndex i = 0; i < count && n < max; i++) {
			CFTypeRef item = values[i];
			if (item == NULL || CFGetTypeID(item) != CFDictionaryGetTypeID()) {
				continue;
			}
			soc_fill_channel((CFDictionaryRef)item, &out[n++]);
		}
		free((void *)values);
		return n;
	}

	return -1;
}
*/
import "C"

import (
	"time"
	"unsafe"

	"codeberg.org/mutker/socmon/internal/errors"
)

// channelGroup names one IOReport group to subscribe to. An empty
// subgroup subscribes to the whole group.
type channelGroup struct {
	group    string
	subgroup string
}

// subscription holds one IOReport subscription over a merged channel
// set. close releases every reference the subscription acquired.
type subscription struct {
	ref    C.IOReportSubscriptionRef
	merged *cfObject
	subbed *cfObject
}

func copyChannelsInGroup(g channelGroup) (*cfObject, error) {
	errFactory := errors.New()

	groupName := newCFString(g.group)
	defer groupName.Release()

	var subgroupRef C.CFStringRef
	if g.subgroup != "" {
		subgroupName := newCFString(g.subgroup)
		defer subgroupName.Release()
		subgroupRef = subgroupName.stringRef()
	}

	dict := C.IOReportCopyChannelsInGroup(groupName.stringRef(), subgroupRef, 0, 0, 0)
	obj := ownCF(C.CFTypeRef(unsafe.Pointer(dict)))
	if obj.isNull() {
		return nil, errFactory.WithData(ErrNoChannels, g.group)
	}

	return obj, nil
}

// newSubscription merges the requested groups into one channel set and
// subscribes to it.
func newSubscription(groups []channelGroup) (*subscription, error) {
	errFactory := errors.New()

	if len(groups) == 0 {
		return nil, errFactory.WithMessage(ErrNoChannels, "no channel groups requested")
	}

	merged, err := copyChannelsInGroup(groups[0])
	if err != nil {
		return nil, err
	}
	for _, g := range groups[1:] {
		extra, err := copyChannelsInGroup(g)
		if err != nil {
			merged.Release()
			return nil, err
		}
		C.IOReportMergeChannels(merged.dictionaryRef(), extra.dictionaryRef(), nil)
		extra.Release()
	}

	var subbed C.CFMutableDictionaryRef
	ref := C.IOReportCreateSubscription(nil, merged.mutableDictionaryRef(), &subbed, 0, nil)
	if ref == nil {
		merged.Release()
		return nil, errFactory.WithMessage(ErrConnectionFailed, "IOReportCreateSubscription returned NULL")
	}

	return &subscription{
		ref:    ref,
		merged: merged,
		subbed: ownCF(C.CFTypeRef(unsafe.Pointer(subbed))),
	}, nil
}

// sample captures the current counter values for the subscribed
// channels. The caller owns the returned object.
func (s *subscription) sample() (*cfObject, error) {
	errFactory := errors.New()

	if s == nil || s.ref == nil {
		return nil, errFactory.New(ErrNotOpen)
	}

	raw := C.IOReportCreateSamples(s.ref, s.subbed.mutableDictionaryRef(), nil)
	obj := ownCF(C.CFTypeRef(unsafe.Pointer(raw)))
	if obj.isNull() {
		return nil, errFactory.WithMessage(ErrSensorReadFailed, "IOReportCreateSamples returned NULL")
	}

	return obj, nil
}

// sampleDelta computes per-channel deltas between two samples from the
// same subscription. The caller owns the returned object.
func sampleDelta(prev, cur *cfObject) (*cfObject, error) {
	errFactory := errors.New()

	if prev.isNull() || cur.isNull() {
		return nil, errFactory.New(ErrNullHandle)
	}

	raw := C.IOReportCreateSamplesDelta(prev.dictionaryRef(), cur.dictionaryRef(), nil)
	obj := ownCF(C.CFTypeRef(unsafe.Pointer(raw)))
	if obj.isNull() {
		return nil, errFactory.New(ErrDeltaFailed)
	}

	return obj, nil
}

// decodeChannels flattens a sample into plain channel values so that
// everything downstream is free of CoreFoundation types.
func decodeChannels(sample *cfObject) ([]Channel, error) {
	errFactory := errors.New()

	dict, err := sample.dictionary()
	if err != nil {
		return nil, err
	}

	buf := make([]C.soc_channel_t, C.SOC_MAX_CHANNELS)
	n := int(C.soc_collect_channels(dict, &buf[0], C.int(len(buf))))
	if n < 0 {
		return nil, errFactory.WithMessage(ErrNoChannels, "sample carries no channel list")
	}

	channels := make([]Channel, 0, n)
	for i := 0; i < n; i++ {
		channels = append(channels, decodeChannel(&buf[i]))
	}

	return channels, nil
}

func decodeChannel(c *C.soc_channel_t) Channel {
	ch := Channel{
		Group:    C.GoString(&c.group[0]),
		Subgroup: C.GoString(&c.subgroup[0]),
		Name:     C.GoString(&c.name[0]),
		Unit:     C.GoString(&c.unit[0]),
		Value:    int64(c.simple),
	}

	if count := int(c.state_count); count > 0 {
		ch.States = make([]ChannelState, 0, count)
		for i := 0; i < count; i++ {
			ch.States = append(ch.States, ChannelState{
				Name:      C.GoString(&c.state_names[i][0]),
				Residency: int64(c.residencies[i]),
			})
		}
	}

	return ch
}

func (s *subscription) close() {
	if s == nil {
		return
	}
	if s.ref != nil {
		C.CFRelease(C.CFTypeRef(unsafe.Pointer(s.ref)))
		s.ref = nil
	}
	s.subbed.Release()
	s.subbed = nil
	s.merged.Release()
	s.merged = nil
}

// deltaSource layers the baseline lifecycle over a subscription. The
// first window establishes the baseline; later windows report the
// delta against it and swap the baseline to the newer sample, so each
// window covers only the recent interval.
type deltaSource struct {
	groups     []channelGroup
	sub        *subscription
	baseline   *cfObject
	baselineAt time.Time
}

func (d *deltaSource) open() error {
	if d.sub != nil {
		return nil
	}

	sub, err := newSubscription(d.groups)
	if err != nil {
		return err
	}
	d.sub = sub

	return nil
}

func (d *deltaSource) close() {
	if d.baseline != nil {
		d.baseline.Release()
		d.baseline = nil
	}
	if d.sub != nil {
		d.sub.close()
		d.sub = nil
	}
}

// window samples once against the stored baseline. ErrNoBaseline marks
// the first call after open. A window that produces no usable delta
// leaves the baseline in place so the next call retries against it.
func (d *deltaSource) window() ([]Channel, time.Duration, error) {
	errFactory := errors.New()

	if d.sub == nil {
		return nil, 0, errFactory.New(ErrNotOpen)
	}

	current, err := d.sub.sample()
	if err != nil {
		return nil, 0, err
	}
	now := time.Now()

	if d.baseline == nil {
		d.baseline = current
		d.baselineAt = now
		return nil, 0, errFactory.New(ErrNoBaseline)
	}

	delta, err := sampleDelta(d.baseline, current)
	if err != nil {
		current.Release()
		return nil, 0, err
	}

	channels, err := decodeChannels(delta)
	delta.Release()
	if err != nil {
		current.Release()
		return nil, 0, err
	}

	elapsed := now.Sub(d.baselineAt)
	d.baseline.Release()
	d.baseline = current
	d.baselineAt = now

	return channels, elapsed, nil
}

// deltaFailure reports windows that produced no usable delta while the
// subscription itself stayed healthy. Callers fall back to their last
// cached value on these.
func deltaFailure(err error) bool {
	return errors.HasCode(err, ErrDeltaFailed) ||
		errors.HasCode(err, ErrNoChannels) ||
		errors.HasCode(err, ErrWrongType)
}
