package sftp

// Response-message assembly. Each builder returns an *unframed*
// payload (opcode byte onward); Session.writeFrame adds the 4-byte
// length prefix per spec.md §3 before it goes out on the wire.

// nameItem is one entry of a NAME response: spec.md §4.5.
type nameItem struct {
	Name     string
	LongName string
	Attr     *Attr
}

func msgVersion() []byte {
	b := []byte{fxpVersion}
	return appendUint32(b, ProtocolVersion)
}

func msgStatus(id uint32, err error) []byte {
	b := []byte{fxpStatus}
	b = appendUint32(b, id)
	b = appendUint32(b, statusCode(err))
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	b = appendString(b, msg)
	b = appendString(b, "") // language tag, always empty
	return b
}

func msgHandle(id uint32, handle string) []byte {
	b := []byte{fxpHandle}
	b = appendUint32(b, id)
	b = appendString(b, handle)
	return b
}

func msgData(id uint32, data []byte) []byte {
	b := []byte{fxpData}
	b = appendUint32(b, id)
	b = appendBytes(b, data)
	return b
}

func msgAttrs(id uint32, a *Attr) []byte {
	b := []byte{fxpAttrs}
	b = appendUint32(b, id)
	b = appendAttr(b, a)
	return b
}

func msgName(id uint32, items []nameItem) []byte {
	b := []byte{fxpName}
	b = appendUint32(b, id)
	b = appendUint32(b, uint32(len(items)))
	for _, it := range items {
		b = appendString(b, it.Name)
		b = appendString(b, it.LongName)
		b = appendAttr(b, it.Attr)
	}
	return b
}
