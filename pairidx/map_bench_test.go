package pairidx

import "testing"

func BenchmarkMixClientID(b *testing.B) {
	id := []byte("0123456789abcdef")
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		MixClientID(id)
	}
}

func BenchmarkMixClientIDShort(b *testing.B) {
	id := []byte("abc")
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		MixClientID(id)
	}
}

func BenchmarkMixClientIDLong(b *testing.B) {
	id := make([]byte, 256)
	for i := range id {
		id[i] = byte(i)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		MixClientID(id)
	}
}
