// Package waveform decodes single-axis vibration captures from the file
// formats the agent and guidectl accept.
//
//   - csv:  one numeric column selected by index; a non-numeric first row is
//     treated as a header and skipped.
//   - phm:  PHM 2012 accelerometer files (hour, minute, second, microsecond,
//     horizontal, vertical). Comma or semicolon separated.
//   - json: {"samples": [...], "sampling_rate": 25600, "velocity": 0.5}.
//
// Decode never fills SamplingRate or Velocity from defaults; callers merge
// their configured values with ApplyDefaults.
package waveform
