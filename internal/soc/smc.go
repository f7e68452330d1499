package soc

/*
#cgo LDFLAGS: -framework CoreFoundation -framework IOKit
#include <stdint.h>
#include <string.h>
#include <mach/mach.h>
#include <IOKit/IOKitLib.h>

#define KERNEL_INDEX_SMC 2
#define SMC_CMD_READ_BYTES 5
#define SMC_CMD_READ_KEYINFO 9

typedef struct {
	char major;
	char minor;
	char build;
	char reserved[1];
	uint16_t release;
} SMCKeyData_vers_t;

typedef struct {
	uint16_t version;
	uint16_t length;
	uint32_t cpuPLimit;
	uint32_t gpuPLimit;
	uint32_t memPLimit;
} SMCKeyData_pLimitData_t;

typedef struct {
	uint32_t dataSize;
	uint32_t dataType;
	char dataAttributes;
} SMCKeyData_keyInfo_t;

typedef unsigned char SMCBytes_t[32];

typedef struct {
	uint32_t key;
	SMCKeyData_vers_t vers;
	SMCKeyData_pLimitData_t pLimitData;
	SMCKeyData_keyInfo_t keyInfo;
	char result;
	char status;
	char data8;
	uint32_t data32;
	SMCBytes_t bytes;
} SMCKeyData_t;

static kern_return_t soc_smc_open(io_connect_t *conn) {
	io_service_t service = IOServiceGetMatchingService(MACH_PORT_NULL, IOServiceMatching("AppleSMC"));
	if (service == MACH_PORT_NULL) {
		return kIOReturnNotFound;
	}
	kern_return_t kr = IOServiceOpen(service, mach_task_self(), 0, conn);
	IOObjectRelease(service);
	return kr;
}

static kern_return_t soc_smc_call(io_connect_t conn, SMCKeyData_t *in, SMCKeyData_t *out) {
	size_t out_size = sizeof(SMCKeyData_t);
	memset(out, 0, sizeof(SMCKeyData_t));
	return IOConnectCallStructMethod(conn, KERNEL_INDEX_SMC, in, sizeof(SMCKeyData_t), out, &out_size);
}
*/
import "C"

import (
	"encoding/binary"
	"math"

	"codeberg.org/mutker/socmon/internal/errors"
)

// smcResultKeyNotFound is the SMC status byte for a key the firmware
// does not expose on this model.
const smcResultKeyNotFound = 0x84

// smcClient talks to the AppleSMC user client. The connection handle
// must stay on the goroutine that opened it.
type smcClient struct {
	conn C.io_connect_t
	open bool
}

func (c *smcClient) Open() error {
	errFactory := errors.New()

	if c.open {
		return nil
	}

	kr := C.soc_smc_open(&c.conn)
	if !IsKernSuccess(int(kr)) {
		return errFactory.Wrap(ErrConnectionFailed, newKernError(int(kr)))
	}
	c.open = true

	return nil
}

func (c *smcClient) Close() error {
	errFactory := errors.New()

	if !c.open {
		return nil
	}

	kr := C.IOServiceClose(c.conn)
	c.open = false
	c.conn = 0
	if !IsKernSuccess(int(kr)) {
		return errFactory.Wrap(ErrShutdownFailed, newKernError(int(kr)))
	}

	return nil
}

// ReadKey reads one key as a float. Key info and the value itself take
// one kernel call each.
func (c *smcClient) ReadKey(key string) (float64, error) {
	errFactory := errors.New()

	if !c.open {
		return 0, errFactory.New(ErrNotOpen)
	}

	code, err := smcKeyCode(key)
	if err != nil {
		return 0, err
	}

	var in, out C.SMCKeyData_t
	in.key = C.uint32_t(code)
	in.data8 = C.char(C.SMC_CMD_READ_KEYINFO)
	if err := c.call(&in, &out); err != nil {
		return 0, err
	}
	if err := smcResultError(byte(out.result), key); err != nil {
		return 0, err
	}

	dataType := uint32(out.keyInfo.dataType)
	dataSize := uint32(out.keyInfo.dataSize)
	if dataSize == 0 || dataSize > uint32(len(out.bytes)) {
		return 0, errFactory.WithData(ErrSensorReadFailed, struct {
			Key  string
			Size uint32
		}{key, dataSize})
	}

	var read, result C.SMCKeyData_t
	read.key = C.uint32_t(code)
	read.keyInfo.dataSize = C.uint32_t(dataSize)
	read.data8 = C.char(C.SMC_CMD_READ_BYTES)
	if err := c.call(&read, &result); err != nil {
		return 0, err
	}
	if err := smcResultError(byte(result.result), key); err != nil {
		return 0, err
	}

	raw := make([]byte, dataSize)
	for i := range raw {
		raw[i] = byte(result.bytes[i])
	}

	return decodeSMCFloat(dataType, raw)
}

func (c *smcClient) call(in, out *C.SMCKeyData_t) error {
	errFactory := errors.New()

	kr := C.soc_smc_call(c.conn, in, out)
	if !IsKernSuccess(int(kr)) {
		return errFactory.Wrap(ErrSensorReadFailed, newKernError(int(kr)))
	}

	return nil
}

func smcResultError(result byte, key string) error {
	errFactory := errors.New()

	switch result {
	case 0:
		return nil
	case smcResultKeyNotFound:
		return errFactory.WithData(ErrSensorNotFound, key)
	default:
		return errFactory.WithData(ErrSensorReadFailed, struct {
			Key    string
			Result byte
		}{key, result})
	}
}

// smcKeyCode packs a four character key into its wire representation.
func smcKeyCode(key string) (uint32, error) {
	errFactory := errors.New()

	if len(key) != 4 {
		return 0, errFactory.WithData(ErrInvalidKey, key)
	}

	return fourCC(key), nil
}

func fourCC(s string) uint32 {
	return uint32(s[0])<<24 | uint32(s[1])<<16 | uint32(s[2])<<8 | uint32(s[3])
}

// decodeSMCFloat decodes the two value encodings temperature keys use:
// flt is a little endian float32, sp78 a big endian signed 7.8 fixed
// point value.
func decodeSMCFloat(dataType uint32, raw []byte) (float64, error) {
	errFactory := errors.New()

	switch dataType {
	case fourCC("flt "):
		if len(raw) < 4 {
			return 0, errFactory.WithData(ErrSensorReadFailed, len(raw))
		}
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(raw))), nil
	case fourCC("sp78"):
		if len(raw) < 2 {
			return 0, errFactory.WithData(ErrSensorReadFailed, len(raw))
		}
		return float64(int16(uint16(raw[0])<<8|uint16(raw[1]))) / 256, nil
	default:
		return 0, errFactory.WithData(ErrWrongType, fourCCString(dataType))
	}
}

func fourCCString(code uint32) string {
	return string([]byte{byte(code >> 24), byte(code >> 16), byte(code >> 8), byte(code)})
}
