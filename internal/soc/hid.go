package soc

/*
#cgo LDFLAGS: -framework CoreFoundation -framework IOKit
#include <stdint.h>
#include <string.h>
#include <CoreFoundation/CoreFoundation.h>

typedef double IOHIDFloat;
typedef struct __IOHIDEventSystemClient *IOHIDEventSystemClientRef;
typedef struct __IOHIDServiceClient *IOHIDServiceClientRef;
typedef struct __IOHIDEvent *IOHIDEventRef;

extern IOHIDEventSystemClientRef IOHIDEventSystemClientCreate(CFAllocatorRef allocator);
extern int IOHIDEventSystemClientSetMatching(IOHIDEventSystemClientRef client, CFDictionaryRef match);
extern CFArrayRef IOHIDEventSystemClientCopyServices(IOHIDEventSystemClientRef client);
extern IOHIDEventRef IOHIDServiceClientCopyEvent(IOHIDServiceClientRef service, int64_t type, int32_t options, int64_t depth);
extern IOHIDFloat IOHIDEventGetFloatValue(IOHIDEventRef event, int32_t field);
extern CFTypeRef IOHIDServiceClientCopyProperty(IOHIDServiceClientRef service, CFStringRef key);

#define kIOHIDEventTypeTemperature 15
#define IOHIDEventFieldBase(type) (type << 16)

#define SOC_HID_MAX_READINGS 64
#define SOC_HID_NAME_LEN 64

typedef struct {
	double value;
	char name[SOC_HID_NAME_LEN];
} soc_hid_reading_t;

// Thermal HID services sit on the AppleSensor usage page.
static int soc_hid_temperatures(soc_hid_reading_t *out, int max) {
	CFMutableDictionaryRef matching = CFDictionaryCreateMutable(kCFAllocatorDefault, 0,
		&kCFTypeDictionaryKeyCallBacks, &kCFTypeDictionaryValueCallBacks);
	if (matching == NULL) {
		return -1;
	}
	int32_t page = 0xff00;
	int32_t usage = 5;
	CFNumberRef pageNum = CFNumberCreate(kCFAllocatorDefault, kCFNumberSInt32Type, &page);
	CFNumberRef usageNum = CFNumberCreate(kCFAllocatorDefault, kCFNumberSInt32Type, &usage);
	CFDictionarySetValue(matching, CFSTR("PrimaryUsagePage"), pageNum);
	CFDictionarySetValue(matching, CFSTR("PrimaryUsage"), usageNum);
	CFRelease(pageNum);
	CFRelease(usageNum);

	IOHIDEventSystemClientRef system = IOHIDEventSystemClientCreate(kCFAllocatorDefault);
	if (system == NULL) {
		CFRelease(matching);
		return -1;
	}
	IOHIDEventSystemClientSetMatching(system, matching);
	CFRelease(matching);

	CFArrayRef services = IOHIDEventSystemClientCopyServices(system);
	if (services == NULL) {
		CFRelease(system);
		return 0;
	}

	int n = 0;
	CFIndex count = CFArrayGetCount(services);
	for (CFIndex i = 0; i < count && n < max; i++) {
		IOHIDServiceClientRef service = (IOHIDServiceClientRef)CFArrayGetValueAtIndex(services, i);
		IOHIDEventRef event = IOHIDServiceClientCopyEvent(service, kIOHIDEventTypeTemperature, 0, 0);
		if (event == NULL) {
			continue;
		}
		double value = IOHIDEventGetFloatValue(event, IOHIDEventFieldBase(kIOHIDEventTypeTemperature));
		CFRelease(event);

		soc_hid_reading_t *r = &out[n];
		memset(r, 0, sizeof(*r));
		r->value = value;

		CFTypeRef product = IOHIDServiceClientCopyProperty(service, CFSTR("Product"));
		if (product != NULL) {
			if (CFGetTypeID(product) == CFStringGetTypeID()) {
				CFStringGetCString((CFStringRef)product, r->name, SOC_HID_NAME_LEN, kCFStringEncodingUTF8);
			}
			CFRelease(product);
		}
		n++;
	}

	CFRelease(services);
	CFRelease(system);

	return n;
}
*/
import "C"

import (
	"strings"

	"codeberg.org/mutker/socmon/internal/errors"
)

// hidReading is one thermal HID service sample with its product name.
type hidReading struct {
	Name  string
	Value float64
}

// readHIDTemperatures snapshots every thermal HID service once. Last
// resort for models whose firmware exposes no readable SMC key.
func readHIDTemperatures() ([]hidReading, error) {
	errFactory := errors.New()

	buf := make([]C.soc_hid_reading_t, C.SOC_HID_MAX_READINGS)
	n := int(C.soc_hid_temperatures(&buf[0], C.int(len(buf))))
	if n < 0 {
		return nil, errFactory.WithMessage(ErrConnectionFailed, "IOHID event system unavailable")
	}

	readings := make([]hidReading, 0, n)
	for i := 0; i < n; i++ {
		readings = append(readings, hidReading{
			Name:  C.GoString(&buf[i].name[0]),
			Value: float64(buf[i].value),
		})
	}

	return readings, nil
}

// classifyHIDReadings averages readings into a CPU temperature by
// product name. Cluster sensors are pACC/eACC MTR Temp, die sensors
// PMU tdie; anything naming a GPU is excluded. When no CPU sensor is
// identified the average over all plausible readings stands in.
func classifyHIDReadings(readings []hidReading) (Celsius, bool) {
	var cpuSum, allSum float64
	var cpuCount, allCount int

	for _, r := range readings {
		if !plausibleCelsius(Celsius(r.Value)) {
			continue
		}
		allSum += r.Value
		allCount++

		name := strings.ToLower(r.Name)
		switch {
		case strings.Contains(name, "gpu"):
		case strings.Contains(name, "cpu"),
			strings.Contains(name, "acc mtr temp"),
			strings.Contains(name, "pmu tdie"):
			cpuSum += r.Value
			cpuCount++
		}
	}

	if cpuCount > 0 {
		return Celsius(cpuSum / float64(cpuCount)), true
	}
	if allCount > 0 {
		return Celsius(allSum / float64(allCount)), true
	}

	return 0, false
}
