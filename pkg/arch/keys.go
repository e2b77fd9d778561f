package arch

// Embedded fallback for the repository signing keys, used when the host has no
// trust store of its own. One constant per key, body only; the owning filename
// lives in the Table entries so the same body can be shared across entries.
const (
	keyBody4a6a0840 = "MIIBIjANBgkqhkiG9w0BAQEFAAOCAQ8AMIIBCgKCAQEAGZWqJRNlAWZJvZP4XA/5ymSqWxQ9ONksLv19ar7nFvDESveq77rBBSZBAWcBOZmvOpa75ZJWCl2P0T+jILf8MhKvujhqWL+AeQpnivYaf2FmDL8hA2d5WFQIjg4/nIAq+2X2qWDy6pJnrITT0bpIUY+6EsJgeDRroSDcC2kTxNIcgLqTCzaQ1Oz1zZdlBIl7QPiy7wy+55o/SbFeHkuLCAQqiXc17kuwVI14c6qTlJaerytngcmc8uXaRwP9Hp0ZiKxtdGcsYWIva/Aj7vYxY+Xh1iCoD3+pq8S54i3QSLG+ftTBUOiApvIXrNKDVXu1jA9gA9jVmSkOxu/WIalDH/dxuDVE"

	keyBody5261cecb = "MIIBIjANBgkqhkiG9w0BAQEFAAOCAQ8AMIIBCgKCAQEAypsQN/T6b6H4sy9eXcX+8OEy6B1r0dWVDgLJbc+gX7t3VoN8od6Nx11pGf/sZpDUYWntJS6HB6n88FHe4X3YZDxUiN8BrpAXPsgxgSyZfLhRHWUYb9gTGZh4R6jLbLuZwJHN3IrjNGAzJWCnG31FdOqQJNynTerP8+6dsmkjL4/+6/KF8ctIn4PImDkZ7Dm/glhtQtUvOOBPZ9ZpgxzZo4Z4LfXQ8IA8tm4gMHn+8k65dy7CU/zJH9tFe9nXzohDjVIbJIVic8cyORQTq+QUGB1JYISXrz684jen8TQeRPpPnOjrT5TaNLVCf1Xlq2ry/59lVZXM5Ulau+V3vU9rqAGzfL/W"

	keyBody5243ef4b = "MIIBIjANBgkqhkiG9w0BAQEFAAOCAQ8AMIIBCgKCAQEA6mQNrQhPqcI9emyfeL6wSjedDRfE+rlxkfwiCAP95ikiUPea3z//mLwFqHmPNgIAKO/qiYPSDXy5X0JQOFiDNzx6IsM4tO38tPWbBcjTj+pQhGNkJwpHG4NlJU7iU5Pd/NfwoIEOiF0ydTItwzzVJBmtTdomeuge6NlKBGpuKbkWyvxCoTIHP4AVEhxxmiIqN96zlwdCkoWbZHAMx4bc4/JPc4tUZKAu5CSqtWJzSK8bLzkX/S/zBUOc1VQMdv1zqostuyKW3vE6gocMKFnG+8EshR/MoC0xUQjIzwfIb5lw64o/2Zmh6msmMFgt6ELcWHxZXGku04gw/4DdELdt4MYb5Usz"

	keyBody58199dcc = "MIIBIjANBgkqhkiG9w0BAQEFAAOCAQ8AMIIBCgKCAQEAXIGTek0BocNj64ZUEL6/q6bgtivjJgq0zrVx+57coQF+GvNCPIsJlKJ/zJ+7i16XPnaVB7CRpSqG18pWO7YjhiSh2pOhE9v+o4RAOVbbPatCCWiC0veFsgB5UGKnpAsW8fOfQMUciQ4GKN1ELdrGDeq3i9K4qLawmGt8oMAY7cN3pFiM5z+aYKUqwmW7d8So+HJ5bvOnTNAic0UHm3erH8lhm0eMbWIqasmF34SCn0LcQsqossnDB1oM9gBcFCMCBIy7GdibmUyEiVuvtAn9NdYNDFaM12Yi/RRXeYyM2JOldo6tXo/tNd3ff3zrTRdxGGzWFvKHKRdzlY3fF9aHpWgdyVkd"

	keyBody524d27bb = "MIIBIjANBgkqhkiG9w0BAQEFAAOCAQ8AMIIBCgKCAQEApCCpjC5v5Lcf1/f3pIQ75PYuKQD0XkNWhgTyokE6G/LjqbXzTsdAlnTQheGyovmcSqphzoUMRBkOmNfAe7Zd3HalI+QmSQdWdyCJj9r6jym1qUFDLrFWKP1c1OlSyZjSi46KJ8ihKg+4z+e15oKhr3Y4J2lVL5x8zQez9B5Ubg0DQL09CyqExXxmN72ydyYpFOzgdtLG3bv09myMu90fYWkJh7wd+rLUV0+Na5FOvQZ8cy/Vr3xV+PipanoK5y/6U3HKEk9eHrXsV26e1b+HKAGVtppnl5PXN8EaWhWg04igJMFD1YeU8NygtAMg7taULFzUgRI28136QURhpNotxIna6/TU"
)
