// Package builtin provides the helper functions shared by collection
// templates and scripts.
//
// Available functions include uuid, now, timestamp, timestampMs, random,
// randomString, randomEmail, randomAlphanumeric, base64, base64Decode, md5,
// sha256, urlEncode, urlDecode, date and json.
//
// Templates call them with the {{$name(args)}} syntax; scripts call them as
// pm.utils.fn.name(args).
package builtin
