// Package bizday computes French business days: the Meeus/Jones/Butcher
// Easter algorithm, the fixed and moveable French public holidays derived
// from it, and a pure add_business_days timestamp advance used to turn a
// send time into a firing schedule.
//
// Every function here is side-effect free. Only the holiday set per year
// is cached, guarded by a mutex, since it is pure data keyed on an integer.
package bizday
